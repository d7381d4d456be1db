// Package notify delivers "catalog changed" signals to downstream consumers
// such as a static-site rebuild hook or a Kafka topic.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
)

// EventCatalogChanged is the only event type emitted.
const EventCatalogChanged = "catalog.changed"

var notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_notifications_total",
	Help: "Total change notifications by notifier and result",
}, []string{"notifier", "result"})

// Event describes a snapshot change.
type Event struct {
	ID            string    `json:"event_id"`
	Type          string    `json:"type"`
	OccurredAt    time.Time `json:"occurred_at"`
	Items         int       `json:"items"`
	SnapshotBytes int       `json:"snapshot_bytes"`
}

// Notifier delivers a change event.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, evt Event) error
}

// Nop discards every event.
type Nop struct{}

// Name implements Notifier.
func (Nop) Name() string { return "nop" }

// Notify implements Notifier.
func (Nop) Notify(context.Context, Event) error { return nil }

// Multi fans an event out to several notifiers and waits for all of them.
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a fan-out notifier. Nil entries are skipped.
func NewMulti(notifiers ...Notifier) *Multi {
	m := &Multi{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Name implements Notifier.
func (m *Multi) Name() string { return "multi" }

// Len returns the number of wrapped notifiers.
func (m *Multi) Len() int { return len(m.notifiers) }

// Notify delivers evt to every notifier concurrently.
// All notifiers run to completion; their failures are joined.
func (m *Multi) Notify(ctx context.Context, evt Event) error {
	errs := make([]error, len(m.notifiers))

	var g errgroup.Group
	for i, n := range m.notifiers {
		g.Go(func() error {
			if err := n.Notify(ctx, evt); err != nil {
				notificationsTotal.WithLabelValues(n.Name(), "error").Inc()
				errs[i] = fmt.Errorf("%s: %w", n.Name(), err)
				return nil
			}
			notificationsTotal.WithLabelValues(n.Name(), "ok").Inc()
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
