package service

import (
	"context"

	"squizy/internal/model"
)

// SessionStore is the shared per-room document store. Writes merge field by
// field with last-write-wins semantics; there are no transactions.
type SessionStore interface {
	// Set replaces the whole document for a room
	Set(ctx context.Context, code string, doc model.Update) error
	// Update merges the present fields into the stored document
	Update(ctx context.Context, code string, u model.Update) error
	// Snapshot reads the current document. ok is false when the room does not exist.
	Snapshot(ctx context.Context, code string) (doc model.Update, ok bool, err error)
	// Subscribe delivers the whole document, first on subscription when it exists,
	// then after every change. The channel is closed when ctx is done.
	Subscribe(ctx context.Context, code string) (<-chan model.Update, error)
}
