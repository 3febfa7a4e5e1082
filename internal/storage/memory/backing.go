package memory

import (
	"context"
	"sync"

	"github.com/dtroode/gophdate-session/internal/model"
)

var _ model.Backing = (*Backing)(nil)

// Backing keeps the credential record in process memory.
type Backing struct {
	mu     sync.Mutex
	name   string
	record model.Record
}

// New creates an empty in-memory backing.
func New(name string) *Backing {
	return &Backing{name: name}
}

// Name returns the backing name.
func (b *Backing) Name() string {
	return b.name
}

// Read returns the stored record.
func (b *Backing) Read(_ context.Context) (model.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.record, nil
}

// Write replaces the stored record.
func (b *Backing) Write(_ context.Context, record model.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record = record
	return nil
}

// Clear removes the stored record.
func (b *Backing) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record = model.Record{}
	return nil
}
