// Package memory holds snapshots in process, for tests and dry runs.
package memory

import (
	"context"
	"sync"
)

// Archiver keeps snapshots in a map keyed by object path.
type Archiver struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func New() *Archiver {
	return &Archiver{blobs: make(map[string][]byte)}
}

func (a *Archiver) Save(_ context.Context, key string, html []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blobs[key] = append([]byte(nil), html...)
	return "mem://" + key, nil
}

// Get returns a stored snapshot, nil when absent.
func (a *Archiver) Get(key string) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.blobs[key]
}

// Len reports how many snapshots were saved.
func (a *Archiver) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.blobs)
}
