package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Freshness listens for document-indexed events from the external ingestion
// pipeline and keeps the timestamp of the newest one. The health endpoint
// reports it so operators can see how stale the index is. The engine never
// publishes; this side only listens.
type Freshness struct {
	conn    *nats.Conn
	subject string
	onEvent func(documentID string, indexedAt time.Time)

	mu             sync.RWMutex
	lastDocumentID string
	lastIndexedAt  time.Time
	eventCount     uint64
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	// OnEvent is invoked for every indexed event, after the internal state
	// update. Used for metrics.
	OnEvent func(documentID string, indexedAt time.Time)
}

func New(url, subject string) (*Freshness, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Freshness, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("docverse-query-engine"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Freshness{
		conn:    conn,
		subject: subject,
		onEvent: options.OnEvent,
	}, nil
}

func (f *Freshness) Close() {
	if f.conn != nil {
		f.conn.Close()
	}
}

// Run subscribes and blocks until the context is done, then drains.
func (f *Freshness) Run(ctx context.Context) error {
	sub, err := f.conn.Subscribe(f.subject, func(msg *nats.Msg) {
		f.handleMessage(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := f.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := f.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// Status reports the newest indexed event seen so far. ok is false until the
// first event arrives.
func (f *Freshness) Status() (documentID string, indexedAt time.Time, ok bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastDocumentID, f.lastIndexedAt, f.eventCount > 0
}

func (f *Freshness) handleMessage(payload []byte) {
	documentID, indexedAt := parseIndexedEvent(payload)
	if documentID == "" {
		slog.Warn("index_event_without_document_id")
		return
	}

	f.mu.Lock()
	f.eventCount++
	f.lastDocumentID = documentID
	if indexedAt.After(f.lastIndexedAt) {
		f.lastIndexedAt = indexedAt
	}
	f.mu.Unlock()

	if f.onEvent != nil {
		f.onEvent(documentID, indexedAt)
	}
}

// parseIndexedEvent accepts both the pipeline's JSON envelope and legacy
// plain document-id payloads.
func parseIndexedEvent(payload []byte) (string, time.Time) {
	var event struct {
		DocumentID string    `json:"document_id"`
		IndexedAt  time.Time `json:"indexed_at"`
	}
	if err := json.Unmarshal(payload, &event); err == nil && event.DocumentID != "" {
		if event.IndexedAt.IsZero() {
			event.IndexedAt = time.Now().UTC()
		}
		return event.DocumentID, event.IndexedAt
	}
	id := strings.TrimSpace(string(payload))
	if id == "" || strings.HasPrefix(id, "{") {
		return "", time.Time{}
	}
	return id, time.Now().UTC()
}
