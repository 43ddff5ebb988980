package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/V4T54L/notification-service/internal/domain"
)

type scriptedSession struct {
	mu       sync.Mutex
	messages []kafka.Message
	// onDrained runs once the scripted messages are used up and decides the fetch error.
	onDrained func() error
	log       *[]string
	committed []kafka.Message
	closed    bool
}

func (s *scriptedSession) FetchMessage(ctx context.Context) (kafka.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return kafka.Message{}, s.onDrained()
	}
	m := s.messages[0]
	s.messages = s.messages[1:]
	return m, nil
}

func (s *scriptedSession) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	for _, m := range msgs {
		*s.log = append(*s.log, "commit")
		s.committed = append(s.committed, m)
	}
	return nil
}

func (s *scriptedSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type scriptedConnector struct {
	results []func() (Session, error)
	calls   int
}

func (c *scriptedConnector) Connect(ctx context.Context) (Session, error) {
	i := c.calls
	c.calls++
	if i >= len(c.results) {
		return nil, errors.New("no more scripted connects")
	}
	return c.results[i]()
}

type recordingHandler struct {
	log      *[]string
	failOn   map[int64]error
	panicOn  int64
	ctxErrs  []error
	received []domain.Message
	before   func()
}

func (h *recordingHandler) Handle(ctx context.Context, msg domain.Message) error {
	if h.before != nil {
		h.before()
	}
	*h.log = append(*h.log, "handle")
	h.received = append(h.received, msg)
	h.ctxErrs = append(h.ctxErrs, ctx.Err())
	if h.panicOn != 0 && msg.Offset == h.panicOn {
		panic("boom")
	}
	return h.failOn[msg.Offset]
}

func testConfig() Config {
	return Config{
		GroupID:               "notification-group",
		Topics:                []string{"user.events", "article.events", "project.events", "import.jobs"},
		CoordinatorBackoff:    3 * time.Second,
		RetryBackoff:          5 * time.Second,
		CoordinatorErrorCodes: []int{15, 16},
		CommitTimeout:         time.Second,
	}
}

func newTestConsumer(connector Connector, handler Handler) (*Consumer, *[]time.Duration) {
	c := NewConsumer(testConfig(), connector, handler, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var delays []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return c, &delays
}

func TestConsumer_BackoffTiers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connector := &scriptedConnector{results: []func() (Session, error){
		func() (Session, error) {
			return nil, &domain.ConnectionError{Stage: "find-coordinator", Err: kafka.GroupCoordinatorNotAvailable}
		},
		func() (Session, error) {
			return nil, errors.New("dial tcp 127.0.0.1:9092: connection refused")
		},
		func() (Session, error) {
			return nil, &domain.ConnectionError{Stage: "find-coordinator", Err: kafka.NotCoordinatorForGroup}
		},
		func() (Session, error) {
			cancel()
			return nil, errors.New("stopping")
		},
	}}
	c, delays := newTestConsumer(connector, &recordingHandler{log: new([]string)})

	if err := c.Run(ctx); err != nil {
		t.Fatalf("expected nil on shutdown, got %v", err)
	}

	want := []time.Duration{3 * time.Second, 5 * time.Second, 3 * time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("got delays %v want %v", *delays, want)
	}
	for i := range want {
		if (*delays)[i] != want[i] {
			t.Errorf("attempt %d: got delay %v want %v", i, (*delays)[i], want[i])
		}
	}

	status := c.Status()
	if status.Reconnects != 3 {
		t.Errorf("got %d reconnects want 3", status.Reconnects)
	}
	if status.State != domain.StateShuttingDown.String() {
		t.Errorf("got state %q want %q", status.State, domain.StateShuttingDown.String())
	}
	if status.LastError == "" || status.LastErrorAt == nil {
		t.Errorf("expected last error to be recorded, got %+v", status)
	}
}

func TestConsumer_FetchErrorUsesLongTier(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := new([]string)
	session := &scriptedSession{log: log, onDrained: func() error { return io.ErrUnexpectedEOF }}
	connector := &scriptedConnector{results: []func() (Session, error){
		func() (Session, error) { return session, nil },
		func() (Session, error) {
			cancel()
			return nil, errors.New("stopping")
		},
	}}
	c, delays := newTestConsumer(connector, &recordingHandler{log: log})

	_ = c.Run(ctx)

	if len(*delays) != 1 || (*delays)[0] != 5*time.Second {
		t.Errorf("got delays %v want [5s]", *delays)
	}
	if !session.closed {
		t.Error("expected the broken session to be closed")
	}
}

func TestConsumer_IsolatesFailuresAndCommitsAfterProcessing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := new([]string)
	session := &scriptedSession{
		log: log,
		messages: []kafka.Message{
			{Topic: "user.events", Partition: 0, Offset: 1, Value: []byte(`{"userId":"u1"}`)},
			{Topic: "user.events", Partition: 0, Offset: 2, Value: []byte(`{bad`)},
			{Topic: "user.events", Partition: 0, Offset: 3, Value: []byte(`{"userId":"u2"}`)},
			{Topic: "project.events", Partition: 1, Offset: 4, Value: []byte(`{"projectId":42}`)},
		},
		onDrained: func() error {
			cancel()
			return context.Canceled
		},
	}
	connector := &scriptedConnector{results: []func() (Session, error){
		func() (Session, error) { return session, nil },
	}}
	handler := &recordingHandler{
		log:     log,
		failOn:  map[int64]error{2: &domain.MalformedPayloadError{Topic: "user.events", Err: errors.New("bad json")}},
		panicOn: 3,
	}
	c, delays := newTestConsumer(connector, handler)

	if err := c.Run(ctx); err != nil {
		t.Fatalf("expected nil on shutdown, got %v", err)
	}

	if len(handler.received) != 4 {
		t.Fatalf("expected all 4 messages handled, got %d", len(handler.received))
	}
	if len(session.committed) != 4 {
		t.Fatalf("expected all 4 offsets committed, got %d", len(session.committed))
	}
	for i := 0; i < len(*log); i += 2 {
		if (*log)[i] != "handle" || (*log)[i+1] != "commit" {
			t.Fatalf("expected handle before commit for every message, got %v", *log)
		}
	}
	if len(*delays) != 0 {
		t.Errorf("expected no reconnect, got delays %v", *delays)
	}

	status := c.Status()
	if status.Processed != 4 || status.Failed != 2 {
		t.Errorf("got processed=%d failed=%d want 4 and 2", status.Processed, status.Failed)
	}
	want := []domain.PartitionOffset{
		{Topic: "project.events", Partition: 1, Offset: 4},
		{Topic: "user.events", Partition: 0, Offset: 3},
	}
	if len(status.CommittedUntil) != len(want) {
		t.Fatalf("got committed %v want %v", status.CommittedUntil, want)
	}
	for i := range want {
		if status.CommittedUntil[i] != want[i] {
			t.Errorf("got %+v want %+v", status.CommittedUntil[i], want[i])
		}
	}
}

func TestConsumer_InFlightMessageCompletesOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := new([]string)
	session := &scriptedSession{
		log:       log,
		messages:  []kafka.Message{{Topic: "import.jobs", Offset: 10}},
		onDrained: func() error { return ctx.Err() },
	}
	connector := &scriptedConnector{results: []func() (Session, error){
		func() (Session, error) { return session, nil },
	}}
	// Shutdown is requested while the message is being handled.
	handler := &recordingHandler{log: log, before: cancel}
	c, _ := newTestConsumer(connector, handler)

	if err := c.Run(ctx); err != nil {
		t.Fatalf("expected nil on shutdown, got %v", err)
	}

	if handler.ctxErrs[0] != nil {
		t.Errorf("expected handler context to survive shutdown, got %v", handler.ctxErrs[0])
	}
	if len(session.committed) != 1 {
		t.Errorf("expected the in-flight message to be committed, got %d commits", len(session.committed))
	}
	if !session.closed {
		t.Error("expected session to be closed on shutdown")
	}
	if connector.calls != 1 {
		t.Errorf("expected no reconnect after shutdown, got %d connects", connector.calls)
	}
}

func TestConsumer_BackoffClassification(t *testing.T) {
	c, _ := newTestConsumer(&scriptedConnector{}, &recordingHandler{log: new([]string)})

	testCases := []struct {
		name     string
		err      error
		wantTier string
	}{
		{"Coordinator not available", &domain.ConnectionError{Stage: "fetch", Err: kafka.GroupCoordinatorNotAvailable}, tierCoordinator},
		{"Not coordinator", kafka.NotCoordinatorForGroup, tierCoordinator},
		{"Other kafka error", &domain.ConnectionError{Stage: "fetch", Err: kafka.RebalanceInProgress}, tierDefault},
		{"Network error", errors.New("connection reset by peer"), tierDefault},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, tier := c.backoff(tc.err)
			if tier != tc.wantTier {
				t.Errorf("got tier %q want %q", tier, tc.wantTier)
			}
		})
	}
}

func TestFailedStage(t *testing.T) {
	testCases := []struct {
		err  error
		want string
	}{
		{&domain.MalformedPayloadError{Topic: "t", Err: errors.New("x")}, "normalize"},
		{&domain.UnsupportedChannelError{Kind: "sms"}, "channel"},
		{&domain.StoreError{Op: "insert", Err: errors.New("x")}, "store"},
		{errors.New("emit to u1: relay down"), "emit"},
	}
	for _, tc := range testCases {
		if got := failedStage(tc.err); got != tc.want {
			t.Errorf("failedStage(%v): got %q want %q", tc.err, got, tc.want)
		}
	}
}
