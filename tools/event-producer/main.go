package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"
)

var topics = []string{"user.events", "article.events", "project.events", "import.jobs"}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Comma separated Kafka bootstrap servers")
	concurrency := flag.Int("c", 4, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the run")
	rps := flag.Int("rps", 50, "Messages per second limit")
	users := flag.Int("users", 5, "Number of distinct recipients (u1..uN)")
	flag.Parse()

	log.Printf("Publishing sample events to %s", *brokers)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(*brokers, ",")...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	defer writer.Close()

	var wg sync.WaitGroup
	var successCount, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 10)

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				topic := topics[rand.Intn(len(topics))]
				userID := "u" + strconv.Itoa(rand.Intn(*users)+1)
				value, err := json.Marshal(sampleEvent(topic, userID, workerID))
				if err != nil {
					continue // Should not happen
				}

				err = writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: []byte(userID), Value: value})
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					errorCount.Add(1)
					continue
				}
				successCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	total := successCount.Load() + errorCount.Load()
	log.Println("Run finished.")
	log.Printf("Total Messages: %d", total)
	log.Printf("Published: %d", successCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", float64(total)/duration.Seconds())
}

// sampleEvent builds a payload in the shape each producing service uses.
func sampleEvent(topic, userID string, workerID int) map[string]any {
	projectID := rand.Intn(100) + 1
	switch topic {
	case "project.events":
		return map[string]any{
			"projectId":  projectID,
			"action":     "STATUS_CHANGED",
			"userId":     userID,
			"keycloakId": userID,
			"metadata":   map[string]any{"projet": projectID, "actorName": "worker " + strconv.Itoa(workerID)},
		}
	case "article.events":
		return map[string]any{
			"articleId": uuid.NewString(),
			"eventType": "ARTICLE_UPDATED",
			"user_id":   userID,
			"metadata":  map[string]any{"projetId": projectID, "articleId": rand.Intn(1000)},
		}
	case "user.events":
		return map[string]any{
			"userId": userID,
			"action": "PROFILE_UPDATED",
			"type":   "SUCCESS",
		}
	default:
		return map[string]any{
			"id":      uuid.NewString(),
			"action":  "IMPORT_FINISHED",
			"userId":  userID,
			"content": "Your import has finished",
			"subject": "Import",
		}
	}
}
