// Package seed loads demo organisational data (departments, teams,
// profiles and friends) into a collection store.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"hr-toolkit/internal/logger"
	"hr-toolkit/internal/metrics"
	"hr-toolkit/internal/model"
	"hr-toolkit/internal/storage"
)

//go:embed demo.yaml
var demoFixture []byte

// RefPrefix marks a value that refers to the id of an earlier step.
const RefPrefix = "@"

type Loader struct {
	store storage.CollectionStore
	log   *logger.Logger
}

func NewLoader(store storage.CollectionStore, log *logger.Logger) *Loader {
	return &Loader{store: store, log: log.Named("seed")}
}

// Load inserts the fixture steps in order. A rejected insert or an
// unresolvable reference is recorded as a failed step and loading goes on.
// The error is non-nil only when ctx ends.
func (l *Loader) Load(ctx context.Context, fx model.Fixture) (model.SeedSummary, error) {
	summary := model.SeedSummary{
		Fixture:  fx.Name,
		Inserted: []model.SeededRow{},
		Failed:   []model.SeedFailure{},
	}
	ids := make(map[string]string)

	for _, step := range fx.Steps {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		rec, err := resolve(step.Record, ids)
		if err == nil {
			var id string
			id, err = l.store.Insert(ctx, step.Collection, rec)
			if err == nil {
				ids[refKey(step.Collection, step.Key)] = id
				summary.Inserted = append(summary.Inserted, model.SeededRow{Collection: step.Collection, Key: step.Key, ID: id})
				metrics.SeedInserts.WithLabelValues(step.Collection, "inserted").Inc()
				l.log.Debug("seeded row", "collection", step.Collection, "key", step.Key, "id", id)
				continue
			}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, ctxErr
		}
		summary.Failed = append(summary.Failed, model.SeedFailure{Collection: step.Collection, Key: step.Key, Error: err.Error()})
		metrics.SeedInserts.WithLabelValues(step.Collection, "failed").Inc()
		l.log.Warn("seed step failed", "collection", step.Collection, "key", step.Key, "error", err)
	}

	l.log.Info("fixture loaded", "fixture", fx.Name, "inserted", len(summary.Inserted), "failed", len(summary.Failed))
	return summary, nil
}

// Purge deletes the rows listed in summary, newest first. Rows already gone
// are ignored.
func (l *Loader) Purge(ctx context.Context, summary model.SeedSummary) error {
	var errs []error
	for i := len(summary.Inserted) - 1; i >= 0; i-- {
		row := summary.Inserted[i]
		err := l.store.Delete(ctx, row.Collection, row.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			errs = append(errs, fmt.Errorf("purge %s/%s: %w", row.Collection, row.Key, err))
		}
	}
	return errors.Join(errs...)
}

func refKey(collection, key string) string {
	return collection + "/" + key
}

// resolve replaces "@collection/key" values with the ids inserted so far.
func resolve(rec model.Record, ids map[string]string) (model.Record, error) {
	out := rec.Clone()
	for k, v := range out {
		s, ok := v.(string)
		if !ok || !strings.HasPrefix(s, RefPrefix) {
			continue
		}
		id, found := ids[strings.TrimPrefix(s, RefPrefix)]
		if !found {
			return nil, fmt.Errorf("field %s: unresolved reference %s", k, s)
		}
		out[k] = id
	}
	return out, nil
}

// ParseFixture decodes a YAML fixture.
func ParseFixture(r io.Reader) (model.Fixture, error) {
	var fx model.Fixture
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil {
		return model.Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	for i, step := range fx.Steps {
		if step.Collection == "" {
			return model.Fixture{}, fmt.Errorf("step %d: collection is required", i)
		}
	}
	return fx, nil
}

// DemoFixture returns the built-in demo organisation.
func DemoFixture() (model.Fixture, error) {
	return ParseFixture(bytes.NewReader(demoFixture))
}
