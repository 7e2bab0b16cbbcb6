// internal/storage/store.go
package storage

import (
	"context"
	"errors"
	"fmt"

	"hr-toolkit/internal/model"
)

// ErrNotFound is returned by Update and Delete when no row has the id.
var ErrNotFound = errors.New("record not found")

// Filter selects rows whose columns equal the given values.
type Filter map[string]any

// CollectionStore is table-style access to the remote data store. Stores
// are constructed explicitly and closed by whoever created them.
type CollectionStore interface {
	Insert(ctx context.Context, collection string, rec model.Record) (string, error)
	Select(ctx context.Context, collection string, filter Filter) ([]model.Record, error)
	Update(ctx context.Context, collection, id string, patch model.Record) error
	Delete(ctx context.Context, collection, id string) error
	Close() error
}

// RejectionError is returned when the store refuses a record.
type RejectionError struct {
	Collection string
	Kind       model.RejectionKind
	Column     string
	Code       string
	Message    string
}

func (e *RejectionError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: %s rejected (%s, column %q): %s", e.Collection, e.Code, e.Kind, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s rejected (%s): %s", e.Collection, e.Code, e.Kind, e.Message)
}

// Classify recovers a rejection from err. It returns nil for nil errors and
// a RejectOther rejection for anything the store did not classify.
func Classify(err error) *RejectionError {
	if err == nil {
		return nil
	}
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej
	}
	return &RejectionError{Kind: model.RejectOther, Message: err.Error()}
}
