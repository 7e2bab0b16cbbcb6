// Package discovery recovers the accepted record shape of a remote
// collection by inserting candidate shapes in order until one is accepted.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"hr-toolkit/internal/logger"
	"hr-toolkit/internal/metrics"
	"hr-toolkit/internal/model"
	"hr-toolkit/internal/storage"
)

// SchemaSaver persists the canonical shape of a collection.
type SchemaSaver interface {
	SaveSchema(ctx context.Context, schema *model.CollectionSchema) error
}

type Options struct {
	// Persist saves the accepted shape as the collection's canonical schema.
	Persist bool
}

type Prober struct {
	store   storage.CollectionStore
	schemas SchemaSaver
	log     *logger.Logger
	now     func() time.Time
}

func NewProber(store storage.CollectionStore, log *logger.Logger) *Prober {
	return &Prober{
		store: store,
		log:   log.Named("discovery"),
		now:   time.Now,
	}
}

// WithSchemaSaver enables Options.Persist.
func (p *Prober) WithSchemaSaver(s SchemaSaver) *Prober {
	p.schemas = s
	return p
}

// Discover tries candidates in order and stops at the first one the store
// accepts. Rejections are recorded, not returned. The error is non-nil only
// when ctx ends before a result is reached, an accepted probe row could not
// be cleaned up, or the store rejects a column no candidate sent (such as a
// missing id column). The partial result is always returned.
func (p *Prober) Discover(ctx context.Context, collection string, candidates []model.Record, opts Options) (model.ProbeResult, error) {
	res := model.ProbeResult{
		Collection:     collection,
		Index:          -1,
		Attempts:       []model.ProbeAttempt{},
		AbsentFields:   []string{},
		RequiredFields: []string{},
	}
	absent := map[string]struct{}{}
	required := map[string]struct{}{}
	log := p.log.With("collection", collection)

	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return finish(res, absent, required), err
		}

		attempt := model.ProbeAttempt{Index: i, Shape: candidate}
		var columns []string

		id, err := WithProbeRow(ctx, p.store, collection, candidate, func(ctx context.Context, id string) error {
			rows, err := p.store.Select(ctx, collection, storage.Filter{storage.IDColumn: id})
			if err != nil {
				return fmt.Errorf("read back probe row: %w", err)
			}
			if len(rows) != 1 {
				return fmt.Errorf("read back probe row: got %d rows", len(rows))
			}
			columns = rows[0].Keys()
			return nil
		})

		if id == "" {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return finish(res, absent, required), ctxErr
			}
			rej := storage.Classify(err)
			attempt.Kind = rej.Kind
			attempt.Column = rej.Column
			attempt.Error = err.Error()
			if rej.Kind == model.RejectUnknownColumn && rej.Column != "" && !candidate.Has(rej.Column) {
				// Not a fact about the candidate shape.
				res.Attempts = append(res.Attempts, attempt)
				metrics.ProbeAttempts.WithLabelValues(collection, "store_error").Inc()
				log.Error("store rejected a column outside the candidate", "index", i, "column", rej.Column, "error", err)
				return finish(res, absent, required), fmt.Errorf("%s: store requires column %q that no candidate controls: %w", collection, rej.Column, err)
			}
			switch rej.Kind {
			case model.RejectUnknownColumn:
				if rej.Column != "" {
					absent[rej.Column] = struct{}{}
				}
			case model.RejectMissingRequired:
				if rej.Column != "" {
					required[rej.Column] = struct{}{}
				}
			}
			res.Attempts = append(res.Attempts, attempt)
			metrics.ProbeAttempts.WithLabelValues(collection, string(rej.Kind)).Inc()
			log.Debug("candidate rejected", "index", i, "kind", rej.Kind, "column", rej.Column)
			continue
		}

		attempt.Accepted = true
		res.Attempts = append(res.Attempts, attempt)
		res.Matched = true
		res.Index = i
		res.Shape = candidate
		res.Columns = columns
		res.ProbeID = id
		metrics.ProbeAttempts.WithLabelValues(collection, "accepted").Inc()

		var cleanupErr *CleanupError
		if errors.As(err, &cleanupErr) {
			res.LeakedID = cleanupErr.ID
			metrics.ProbeCleanupFailures.WithLabelValues(collection).Inc()
			log.Error("probe row cleanup failed", "id", cleanupErr.ID, "error", cleanupErr.Err)
			return finish(res, absent, required), err
		}
		if err != nil {
			log.Warn("probe row accepted but not confirmed", "index", i, "error", err)
		}
		log.Info("candidate accepted", "index", i, "fields", candidate.Keys())

		res = finish(res, absent, required)
		if opts.Persist {
			if err := p.persist(ctx, res); err != nil {
				return res, err
			}
		}
		return res, nil
	}

	log.Warn("no candidate shape matched", "candidates", len(candidates))
	return finish(res, absent, required), nil
}

func (p *Prober) persist(ctx context.Context, res model.ProbeResult) error {
	if p.schemas == nil {
		return errors.New("persist requested but no schema store configured")
	}
	schema := &model.CollectionSchema{
		Collection:   res.Collection,
		Fields:       res.Shape.Keys(),
		AbsentFields: res.AbsentFields,
		UpdatedAt:    p.now().UTC(),
	}
	if err := p.schemas.SaveSchema(ctx, schema); err != nil {
		return fmt.Errorf("persist schema for %s: %w", res.Collection, err)
	}
	return nil
}

func finish(res model.ProbeResult, absent, required map[string]struct{}) model.ProbeResult {
	res.AbsentFields = sortedKeys(absent)
	res.RequiredFields = sortedKeys(required)
	return res
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
