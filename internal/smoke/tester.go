// Package smoke exercises create, read, update and delete against a
// collection and reports how many of the four stages worked.
package smoke

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hr-toolkit/internal/logger"
	"hr-toolkit/internal/metrics"
	"hr-toolkit/internal/model"
	"hr-toolkit/internal/storage"
)

var (
	errNoUpdate = errors.New("no update fields supplied")
	errIDUpdate = fmt.Errorf("update must not change the %q column", storage.IDColumn)
)

type Tester struct {
	store storage.CollectionStore
	log   *logger.Logger
	now   func() time.Time
}

func NewTester(store storage.CollectionStore, log *logger.Logger) *Tester {
	return &Tester{store: store, log: log.Named("smoke"), now: time.Now}
}

// Run inserts record, reads it back, applies update and deletes it. When the
// create stage fails the other stages are skipped and the pass count is 0.
// The created row is removed before Run returns, whatever the stage outcomes.
func (t *Tester) Run(ctx context.Context, collection string, record, update model.Record) (report model.SmokeReport) {
	start := t.now()
	report = model.SmokeReport{
		Collection: collection,
		StartedAt:  start.UTC(),
		Stages:     make([]model.StageResult, 0, len(model.Stages)),
	}
	log := t.log.With("collection", collection)

	id, err := t.create(ctx, collection, record)
	report.AddStage(model.StageCreate, err)
	if err != nil {
		for _, s := range model.Stages[1:] {
			report.Stages = append(report.Stages, model.StageResult{Stage: s, Skipped: true})
		}
		t.observe(report)
		report.Duration = t.now().Sub(start)
		log.Warn("create failed, remaining stages skipped", "error", err)
		return report
	}
	report.RecordID = id

	removed := false
	defer func() {
		if !removed {
			cleanupErr := t.store.Delete(context.WithoutCancel(ctx), collection, id)
			if cleanupErr != nil && !errors.Is(cleanupErr, storage.ErrNotFound) {
				report.LeakedID = id
				log.Error("smoke row cleanup failed", "id", id, "error", cleanupErr)
			}
		}
		report.Duration = t.now().Sub(start)
	}()

	report.AddStage(model.StageRead, t.read(ctx, collection, id))
	report.AddStage(model.StageUpdate, t.update(ctx, collection, id, update))

	err = t.delete(ctx, collection, id)
	report.AddStage(model.StageDelete, err)
	if err == nil || errors.Is(err, storage.ErrNotFound) {
		removed = true
	}

	t.observe(report)
	log.Info("smoke run finished", "passed", report.Passed, "pass_rate", report.PassRate())
	return report
}

// RunSuite runs the cases one after another.
func (t *Tester) RunSuite(ctx context.Context, cases []model.SmokeCase) []model.SmokeReport {
	reports := make([]model.SmokeReport, 0, len(cases))
	for _, c := range cases {
		if ctx.Err() != nil {
			break
		}
		reports = append(reports, t.Run(ctx, c.Collection, c.Record, c.Update))
	}
	return reports
}

func (t *Tester) create(ctx context.Context, collection string, record model.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, err := t.store.Insert(ctx, collection, record)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("%s: insert returned no id", collection)
	}
	return id, nil
}

func (t *Tester) read(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows, err := t.store.Select(ctx, collection, storage.Filter{storage.IDColumn: id})
	if err != nil {
		return err
	}
	if len(rows) != 1 {
		return fmt.Errorf("expected 1 row with id %s, got %d", id, len(rows))
	}
	return nil
}

func (t *Tester) update(ctx context.Context, collection, id string, patch model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(patch) == 0 {
		return errNoUpdate
	}
	if patch.Has(storage.IDColumn) {
		return errIDUpdate
	}
	return t.store.Update(ctx, collection, id, patch)
}

func (t *Tester) delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.store.Delete(ctx, collection, id)
}

func (t *Tester) observe(report model.SmokeReport) {
	for _, s := range report.Stages {
		result := "failed"
		switch {
		case s.Passed:
			result = "passed"
		case s.Skipped:
			result = "skipped"
		}
		metrics.SmokeStages.WithLabelValues(report.Collection, string(s.Stage), result).Inc()
	}
}
