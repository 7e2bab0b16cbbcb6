package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"hr-toolkit/internal/auth"
	"hr-toolkit/internal/discovery"
	"hr-toolkit/internal/fallback"
	"hr-toolkit/internal/manager"
	"hr-toolkit/internal/metrics"
	"hr-toolkit/internal/model"
	"hr-toolkit/internal/seed"
	"hr-toolkit/internal/storage"
)

// reservedQueryKeys are request options, never column filters. The REST
// store uses select, limit, offset and order as its own query parameters.
var reservedQueryKeys = map[string]struct{}{
	"select": {},
	"limit":  {},
	"offset": {},
	"order":  {},
	"cursor": {},
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxBodyBytes    = 1 << 20
)

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Public
	r.Get("/healthz", a.Health)
	r.Handle("/metrics", metrics.Handler())

	// Secured
	r.Group(func(r chi.Router) {
		r.Use(a.Auth.Middleware)

		r.Post("/discover", a.Discover)
		r.Post("/smoke", a.Smoke)
		r.Post("/seed", a.Seed)
		r.Post("/jobs", a.SubmitJob)
		r.Put("/workers", a.UpdateWorkers)
		r.Get("/reports", a.ListReports)
		r.Get("/schemas", a.ListSchemas)
		r.Get("/schemas/{collection}", a.GetSchema)
		r.Get("/collections/{name}/records", a.ListRecords)
	})

	return r
}

// DiscoverRequest asks for the accepted shape of a collection.
type DiscoverRequest struct {
	Collection string         `json:"collection"`
	Candidates []model.Record `json:"candidates"`
	Persist    bool           `json:"persist"`
}

// WorkersConfig sets the number of job queue consumers.
type WorkersConfig struct {
	Workers int `json:"workers"`
}

// SmokeRequest runs one CRUD smoke test.
type SmokeRequest struct {
	Collection string       `json:"collection"`
	Record     model.Record `json:"record"`
	Update     model.Record `json:"update"`
}

// @Summary Health check
// @Tags System
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// @Summary Discover the accepted shape of a collection
// @Tags Maintenance
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param body body DiscoverRequest true "Collection and candidate shapes"
// @Success 200 {object} model.ProbeResult
// @Router /discover [post]
func (a *API) Discover(w http.ResponseWriter, r *http.Request) {
	var body DiscoverRequest
	if !decode(w, r, &body) {
		return
	}
	if body.Collection == "" {
		http.Error(w, "collection is required", http.StatusBadRequest)
		return
	}

	res, err := a.Prober.Discover(r.Context(), body.Collection, body.Candidates, discovery.Options{Persist: body.Persist})
	a.saveReport(r.Context(), model.JobDiscover, body.Collection, res)
	if err != nil {
		a.Log.Error("discover failed", "collection", body.Collection, "operator", auth.GetOperator(r), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "result": res})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// @Summary Run a CRUD smoke test against a collection
// @Tags Maintenance
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param body body SmokeRequest true "Record to create and fields to update"
// @Success 200 {object} model.SmokeReport
// @Router /smoke [post]
func (a *API) Smoke(w http.ResponseWriter, r *http.Request) {
	var body SmokeRequest
	if !decode(w, r, &body) {
		return
	}
	if body.Collection == "" {
		http.Error(w, "collection is required", http.StatusBadRequest)
		return
	}

	report := a.Tester.Run(r.Context(), body.Collection, body.Record, body.Update)
	a.saveReport(r.Context(), model.JobSmoke, body.Collection, report)
	writeJSON(w, http.StatusOK, report)
}

// @Summary Load a seed fixture
// @Description Loads the fixture in the body, or the built-in demo fixture when the body is empty.
// @Tags Maintenance
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Success 201 {object} model.SeedSummary
// @Router /seed [post]
func (a *API) Seed(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	var fx model.Fixture
	if len(raw) == 0 {
		fx, err = seed.DemoFixture()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	} else if err := json.Unmarshal(raw, &fx); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	summary, err := a.Seeder.Load(r.Context(), fx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

// @Summary Queue a maintenance job
// @Tags Jobs
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param body body model.Job true "Job"
// @Success 202 {object} map[string]string
// @Failure 503 {string} string "job queue not configured"
// @Router /jobs [post]
func (a *API) SubmitJob(w http.ResponseWriter, r *http.Request) {
	if a.Jobs == nil || !a.Jobs.Enabled() {
		http.Error(w, manager.ErrMessagingDisabled.Error(), http.StatusServiceUnavailable)
		return
	}

	var job model.Job
	if !decode(w, r, &job) {
		return
	}
	submitted, err := a.Jobs.Submit(r.Context(), job)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, manager.ErrMessagingDisabled) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}

	a.Log.Info("job queued", "job_id", submitted.ID, "operator", auth.GetOperator(r))
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": submitted.ID.String()})
}

// @Summary Rescale the job worker pool
// @Tags Jobs
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param body body WorkersConfig true "Worker count"
// @Success 200 {object} WorkersConfig
// @Failure 503 {string} string "no workers running"
// @Router /workers [put]
func (a *API) UpdateWorkers(w http.ResponseWriter, r *http.Request) {
	var body WorkersConfig
	if !decode(w, r, &body) {
		return
	}
	if a.Jobs == nil {
		http.Error(w, manager.ErrNoWorkers.Error(), http.StatusServiceUnavailable)
		return
	}

	n, err := a.Jobs.SetWorkers(body.Workers)
	switch {
	case errors.Is(err, manager.ErrInvalidWorkerCount):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, manager.ErrNoWorkers):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	a.Log.Info("workers rescaled", "workers", n, "operator", auth.GetOperator(r))
	writeJSON(w, http.StatusOK, WorkersConfig{Workers: n})
}

// @Summary List maintenance reports
// @Tags Reports
// @Security ApiKeyAuth
// @Produce json
// @Param kind query string false "discover or smoke"
// @Param cursor query string false "Pagination cursor"
// @Param limit query int false "Page size"
// @Success 200 {object} map[string]interface{}
// @Router /reports [get]
func (a *API) ListReports(w http.ResponseWriter, r *http.Request) {
	if a.Reports == nil {
		http.Error(w, "report storage not configured", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	cursor := q.Get("cursor")
	if cursor != "" {
		if _, err := uuid.Parse(cursor); err != nil {
			http.Error(w, "invalid cursor", http.StatusBadRequest)
			return
		}
	}
	limit := defaultPageSize
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxPageSize)
	}

	reports, next, err := a.Reports.ListReportsPaginated(r.Context(), model.JobKind(q.Get("kind")), cursor, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":        reports,
		"next_cursor": next,
	})
}

// @Summary List canonical collection schemas
// @Tags Schemas
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {array} model.CollectionSchema
// @Router /schemas [get]
func (a *API) ListSchemas(w http.ResponseWriter, r *http.Request) {
	if a.Reports == nil {
		http.Error(w, "report storage not configured", http.StatusServiceUnavailable)
		return
	}
	schemas, err := a.Reports.ListSchemas(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if schemas == nil {
		schemas = []model.CollectionSchema{}
	}
	writeJSON(w, http.StatusOK, schemas)
}

// @Summary Get the canonical schema of a collection
// @Tags Schemas
// @Security ApiKeyAuth
// @Produce json
// @Param collection path string true "Collection name"
// @Success 200 {object} model.CollectionSchema
// @Failure 404 {string} string "not found"
// @Router /schemas/{collection} [get]
func (a *API) GetSchema(w http.ResponseWriter, r *http.Request) {
	if a.Reports == nil {
		http.Error(w, "report storage not configured", http.StatusServiceUnavailable)
		return
	}
	schema, err := a.Reports.GetSchema(r.Context(), chi.URLParam(r, "collection"))
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "schema not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

// @Summary List records of a collection
// @Description Query parameters filter by equality, except select, limit, offset, order and cursor. A backend failure yields an empty list and the X-Degraded header.
// @Tags Collections
// @Security ApiKeyAuth
// @Produce json
// @Param name path string true "Collection name"
// @Success 200 {array} map[string]interface{}
// @Router /collections/{name}/records [get]
func (a *API) ListRecords(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	filter := storage.Filter{}
	for k, v := range r.URL.Query() {
		if _, reserved := reservedQueryKeys[k]; reserved || len(v) == 0 {
			continue
		}
		filter[k] = v[0]
	}

	records, degraded := fallback.List(r.Context(), a.Log.With("collection", name), "records", func(ctx context.Context) ([]model.Record, error) {
		return a.Store.Select(ctx, name, filter)
	})
	if degraded {
		w.Header().Set("X-Degraded", "true")
	}
	writeJSON(w, http.StatusOK, records)
}

// saveReport persists a direct run. Failures are logged and do not fail
// the request.
func (a *API) saveReport(ctx context.Context, kind model.JobKind, collection string, payload any) {
	if a.Reports == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		a.Log.Warn("encode report", "error", err)
		return
	}
	rep := &model.Report{
		ID:         uuid.New(),
		Kind:       kind,
		Collection: collection,
		Payload:    body,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.Reports.SaveReport(context.WithoutCancel(ctx), rep); err != nil {
		a.Log.Warn("save report", "kind", kind, "collection", collection, "error", err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
