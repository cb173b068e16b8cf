// Package store provides the record store interface and its SQLite implementation.
package store

import (
	"context"
	"errors"

	"github.com/Adam-Huang/reflect/internal/model"
)

var (
	// ErrNotFound is returned when a memory, label or trigger does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when a label or trigger name is already taken.
	ErrExists = errors.New("already exists")
)

// Store defines the durable record store behind the memory manager.
type Store interface {
	// InsertMemory stores a memory. An empty ID is assigned by the store.
	InsertMemory(ctx context.Context, m *model.Memory) error

	// UpdateMemory rewrites text, summary, labels, trigger, embedding and updated_at of an existing memory.
	UpdateMemory(ctx context.Context, m *model.Memory) error

	// DeleteMemory removes a memory permanently.
	DeleteMemory(ctx context.Context, id string) error

	// Memories returns every memory in storage order.
	Memories(ctx context.Context) ([]model.Memory, error)

	InsertLabel(ctx context.Context, l model.Label) error
	Labels(ctx context.Context) ([]model.Label, error)
	// RenameLabel renames a label and every memory reference to it in one transaction.
	// Returns the ids of the memories rewritten.
	RenameLabel(ctx context.Context, oldName, newName string, description *string) ([]string, error)
	// DeleteLabel removes a label and strips it from every memory in one transaction.
	DeleteLabel(ctx context.Context, name string) ([]string, error)

	InsertTrigger(ctx context.Context, t model.Trigger) error
	Triggers(ctx context.Context) ([]model.Trigger, error)
	RenameTrigger(ctx context.Context, oldName, newName string, description *string) ([]string, error)
	DeleteTrigger(ctx context.Context, name string) ([]string, error)

	// Close closes the store.
	Close() error
}
