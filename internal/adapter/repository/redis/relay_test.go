package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/notification-service/internal/adapter/hub"
)

type recordingEmitter struct {
	recipients []string
	frames     []hub.Frame
}

func (e *recordingEmitter) EmitFrame(recipientID string, frame hub.Frame) int {
	e.recipients = append(e.recipients, recipientID)
	e.frames = append(e.frames, frame)
	return 1
}

func TestRelay_Handle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name      string
		payload   string
		wantCalls int
	}{
		{"Valid envelope", `{"recipient_id":"u1","event":"notification","data":{"content":"hi"}}`, 1},
		{"Missing recipient", `{"event":"notification","data":{}}`, 0},
		{"Garbage", `not json`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := &recordingEmitter{}
			r := NewRelay(nil, "notifications:fanout", local, logger)

			r.handle(tt.payload)

			if len(local.frames) != tt.wantCalls {
				t.Fatalf("local emits = %d, want %d", len(local.frames), tt.wantCalls)
			}
			if tt.wantCalls == 1 {
				if local.recipients[0] != "u1" || local.frames[0].Event != "notification" {
					t.Errorf("emitted (%s, %s), want (u1, notification)", local.recipients[0], local.frames[0].Event)
				}
				if string(local.frames[0].Data) != `{"content":"hi"}` {
					t.Errorf("Data = %s", local.frames[0].Data)
				}
			}
		})
	}
}

func TestRelay_EmitFallsBackToLocal(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	local := &recordingEmitter{}
	relay := NewRelay(client, "notifications:fanout", local, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := relay.Emit(context.Background(), "u1", "notification", map[string]string{"_id": "n1"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(local.recipients) != 1 || local.recipients[0] != "u1" {
		t.Fatalf("expected local delivery to u1, got %v", local.recipients)
	}
	if string(local.frames[0].Data) != `{"_id":"n1"}` {
		t.Errorf("unexpected frame data: %s", local.frames[0].Data)
	}
}

// countingPublisher answers PUBLISH with a fixed receiver count.
type countingPublisher struct {
	redis.UniversalClient
	receivers int64
	published []string
}

func (p *countingPublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	p.published = append(p.published, channel)
	return redis.NewIntResult(p.receivers, nil)
}

func TestRelay_EmitWithoutSubscribers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name          string
		receivers     int64
		wantLocalEmit int
	}{
		{"Nobody subscribed", 0, 1},
		{"Delivered through the channel", 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &countingPublisher{receivers: tt.receivers}
			local := &recordingEmitter{}
			relay := NewRelay(pub, "notifications:fanout", local, logger)

			if err := relay.Emit(context.Background(), "u1", "notification", map[string]string{"_id": "n1"}); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(pub.published) != 1 || pub.published[0] != "notifications:fanout" {
				t.Errorf("published to %v, want [notifications:fanout]", pub.published)
			}
			if len(local.frames) != tt.wantLocalEmit {
				t.Fatalf("local emits = %d, want %d", len(local.frames), tt.wantLocalEmit)
			}
		})
	}
}
