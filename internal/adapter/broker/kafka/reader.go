package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/V4T54L/notification-service/internal/domain"
)

const dialTimeout = 10 * time.Second

// ReaderConnector opens consumer-group sessions backed by *kafka.Reader.
type ReaderConnector struct {
	cfg    Config
	logger *slog.Logger
}

// NewReaderConnector creates a ReaderConnector.
func NewReaderConnector(cfg Config, logger *slog.Logger) *ReaderConnector {
	return &ReaderConnector{cfg: cfg, logger: logger.With("component", "kafka-reader")}
}

// Connect resolves the group coordinator first so that coordinator errors
// surface as kafka.Error codes, then joins the group through a Reader.
func (rc *ReaderConnector) Connect(ctx context.Context) (Session, error) {
	client := &kafka.Client{
		Addr:      kafka.TCP(rc.cfg.Brokers...),
		Timeout:   dialTimeout,
		Transport: &kafka.Transport{ClientID: rc.cfg.ClientID, DialTimeout: dialTimeout},
	}

	resp, err := client.FindCoordinator(ctx, &kafka.FindCoordinatorRequest{
		Addr:    client.Addr,
		Key:     rc.cfg.GroupID,
		KeyType: kafka.CoordinatorKeyTypeConsumer,
	})
	if err != nil {
		return nil, &domain.ConnectionError{Stage: "find-coordinator", Err: err}
	}
	if resp.Error != nil {
		return nil, &domain.ConnectionError{Stage: "find-coordinator", Err: resp.Error}
	}

	startOffset := kafka.LastOffset
	if rc.cfg.FromBeginning {
		startOffset = kafka.FirstOffset
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        rc.cfg.Brokers,
		GroupID:        rc.cfg.GroupID,
		GroupTopics:    rc.cfg.Topics,
		Dialer:         &kafka.Dialer{ClientID: rc.cfg.ClientID, Timeout: dialTimeout, DualStack: true},
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		StartOffset:    startOffset,
		CommitInterval: 0,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			rc.logger.Warn(fmt.Sprintf(msg, args...))
		}),
	})
	return reader, nil
}
