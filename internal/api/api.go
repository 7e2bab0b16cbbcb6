package api

import (
	"context"
	"net/http"

	"hr-toolkit/internal/discovery"
	"hr-toolkit/internal/logger"
	"hr-toolkit/internal/manager"
	"hr-toolkit/internal/model"
	"hr-toolkit/internal/seed"
	"hr-toolkit/internal/smoke"
	"hr-toolkit/internal/storage"
)

// ReportStore is the tool-owned report and schema storage.
type ReportStore interface {
	SaveReport(ctx context.Context, r *model.Report) error
	ListReportsPaginated(ctx context.Context, kind model.JobKind, cursor string, limit int) ([]model.Report, string, error)
	GetSchema(ctx context.Context, collection string) (*model.CollectionSchema, error)
	ListSchemas(ctx context.Context) ([]model.CollectionSchema, error)
}

// Authenticator wraps secured routes.
type Authenticator interface {
	Middleware(next http.Handler) http.Handler
}

type API struct {
	Store   storage.CollectionStore
	Reports ReportStore
	Prober  *discovery.Prober
	Tester  *smoke.Tester
	Seeder  *seed.Loader
	Jobs    *manager.JobManager
	Auth    Authenticator
	Log     *logger.Logger
}

// NewAPI builds the HTTP API. reports may be nil when no database is
// configured; report and schema routes then answer 503.
func NewAPI(store storage.CollectionStore, reports ReportStore, prober *discovery.Prober, tester *smoke.Tester, seeder *seed.Loader, jobs *manager.JobManager, authn Authenticator, log *logger.Logger) *API {
	return &API{
		Store:   store,
		Reports: reports,
		Prober:  prober,
		Tester:  tester,
		Seeder:  seeder,
		Jobs:    jobs,
		Auth:    authn,
		Log:     log.Named("api"),
	}
}
