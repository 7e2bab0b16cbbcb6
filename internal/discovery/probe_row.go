package discovery

import (
	"context"
	"errors"
	"fmt"

	"hr-toolkit/internal/model"
	"hr-toolkit/internal/storage"
)

// CleanupError reports a probe row that was inserted but could not be removed.
type CleanupError struct {
	Collection string
	ID         string
	Err        error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("%s: probe row %s left behind: %v", e.Collection, e.ID, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// WithProbeRow inserts rec, hands the new id to fn and deletes the row
// before returning. The delete runs even when fn fails, panics or the
// context is cancelled. A non-empty id means the insert was accepted.
func WithProbeRow(
	ctx context.Context,
	store storage.CollectionStore,
	collection string,
	rec model.Record,
	fn func(ctx context.Context, id string) error,
) (id string, err error) {
	id, err = store.Insert(ctx, collection, rec)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("%s: insert returned no id", collection)
	}

	defer func() {
		delErr := store.Delete(context.WithoutCancel(ctx), collection, id)
		if delErr != nil && !errors.Is(delErr, storage.ErrNotFound) {
			err = errors.Join(err, &CleanupError{Collection: collection, ID: id, Err: delErr})
		}
	}()

	if fn != nil {
		err = fn(ctx, id)
	}
	return id, err
}
