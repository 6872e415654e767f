// Package notifier turns repository changes into realtime messages.
//
// Delivery is best-effort and at-most-once: a change that cannot be
// broadcast is logged and dropped, never retried into the write path. The
// originating create/update/delete has already committed by the time the
// notifier sees it and must not be failed retroactively.
package notifier

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"docingest/internal/gateway"
	"docingest/internal/repository"
)

const (
	DefaultQueueSize   = 256
	DefaultMaxAttempts = 2
)

// Options tune the notifier queue.
type Options struct {
	QueueSize   int
	MaxAttempts int
	// BroadcastTimeout bounds one delivery attempt.
	BroadcastTimeout time.Duration
}

// Notifier is a bounded work queue with a single consumer goroutine, so
// events for the same document are delivered in the order the repository
// produced them. Overflow drops the newest event and counts it.
type Notifier struct {
	gw          gateway.Gateway
	queue       chan repository.Change
	maxAttempts int
	timeout     time.Duration

	dropped  prometheus.Counter
	failures prometheus.Counter

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New starts the consumer goroutine. The two counters register on reg;
// registration failure is returned so double-wiring is caught at startup.
func New(gw gateway.Gateway, reg prometheus.Registerer, opts Options) (*Notifier, error) {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BroadcastTimeout <= 0 {
		opts.BroadcastTimeout = 5 * time.Second
	}

	n := &Notifier{
		gw:          gw,
		queue:       make(chan repository.Change, opts.QueueSize),
		maxAttempts: opts.MaxAttempts,
		timeout:     opts.BroadcastTimeout,
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifier_events_dropped_total",
			Help: "Change events dropped because the notifier queue was full.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifier_broadcast_failures_total",
			Help: "Change events discarded after exhausting broadcast attempts.",
		}),
	}

	if reg != nil {
		if err := reg.Register(n.dropped); err != nil {
			return nil, err
		}
		if err := reg.Register(n.failures); err != nil {
			return nil, err
		}
	}

	n.wg.Add(1)
	go n.run()
	return n, nil
}

// OnChange enqueues a repository change without blocking the write path.
// When the queue is full the event is dropped and counted.
func (n *Notifier) OnChange(c repository.Change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- c:
	default:
		n.dropped.Inc()
		logJSON(map[string]any{
			"component":   "notifier",
			"event":       "event_dropped",
			"document_id": c.Document.ID,
			"op":          string(c.Op),
		})
	}
}

// Close stops accepting events, drains the queue and waits for the
// consumer to finish.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()
	n.wg.Wait()
}

func (n *Notifier) run() {
	defer n.wg.Done()
	for c := range n.queue {
		n.deliver(c)
	}
}

func (n *Notifier) deliver(c repository.Change) {
	event := NewEvent(c)
	payload, err := json.Marshal(WireMessage(event))
	if err != nil {
		logJSON(map[string]any{
			"component":   "notifier",
			"event":       "encode_failed",
			"document_id": event.DocumentID,
			"error":       err.Error(),
		})
		return
	}

	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		err = n.gw.Broadcast(ctx, event.FolderID, payload)
		cancel()
		if err == nil {
			return
		}
	}

	// Out of attempts. Subscribers treat a missed message as a state
	// refetch, so the event is discarded, observable only here.
	n.failures.Inc()
	logJSON(map[string]any{
		"component":   "notifier",
		"event":       "broadcast_failed",
		"document_id": event.DocumentID,
		"folder_id":   event.FolderID,
		"action":      string(event.Action),
		"error":       err.Error(),
	})
}

func logJSON(fields map[string]any) {
	b, err := json.Marshal(fields)
	if err != nil {
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
