// Package memory records job events in process for tests.
package memory

import (
	"context"
	"sync"

	"github.com/brstats/statshub/internal/notify"
)

// Notifier collects events in order of delivery.
type Notifier struct {
	mu     sync.Mutex
	events []notify.JobEvent
}

func New() *Notifier {
	return &Notifier{}
}

func (n *Notifier) JobFinished(_ context.Context, event notify.JobEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

// Events snapshots the delivered events.
func (n *Notifier) Events() []notify.JobEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.JobEvent(nil), n.events...)
}
