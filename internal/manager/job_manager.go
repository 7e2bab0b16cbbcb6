// internal/manager/job_manager.go
package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"hr-toolkit/internal/discovery"
	"hr-toolkit/internal/logger"
	"hr-toolkit/internal/metrics"
	"hr-toolkit/internal/model"
	"hr-toolkit/internal/smoke"
	"hr-toolkit/internal/worker"
)

// ErrMessagingDisabled is returned by Submit when no broker is configured.
var ErrMessagingDisabled = errors.New("job queue is not configured")

var (
	ErrNoWorkers          = errors.New("no workers are running")
	ErrInvalidWorkerCount = errors.New("worker count must be at least 1")
)

// DefaultJobTimeout bounds a single job run.
const DefaultJobTimeout = 2 * time.Minute

type Publisher interface {
	Publish(queue string, body []byte) error
}

type ReportSaver interface {
	SaveReport(ctx context.Context, r *model.Report) error
}

type JobManager struct {
	publisher Publisher
	queue     string
	prober    *discovery.Prober
	tester    *smoke.Tester
	reports   ReportSaver
	log       *logger.Logger
	timeout   time.Duration

	mu       sync.Mutex
	pool     *worker.WorkerPool
	inFlight sync.WaitGroup
}

// NewJobManager wires the job runners. publisher may be nil, in which case
// Submit fails with ErrMessagingDisabled; reports may be nil to skip
// persistence.
func NewJobManager(publisher Publisher, queue string, prober *discovery.Prober, tester *smoke.Tester, reports ReportSaver, log *logger.Logger) *JobManager {
	return &JobManager{
		publisher: publisher,
		queue:     queue,
		prober:    prober,
		tester:    tester,
		reports:   reports,
		log:       log.Named("jobs"),
		timeout:   DefaultJobTimeout,
	}
}

// Enabled reports whether jobs can be submitted.
func (m *JobManager) Enabled() bool {
	return m.publisher != nil
}

// Submit validates job, assigns it an id and publishes it to the job queue.
func (m *JobManager) Submit(_ context.Context, job model.Job) (model.Job, error) {
	if m.publisher == nil {
		return model.Job{}, ErrMessagingDisabled
	}
	if err := validate(job); err != nil {
		return model.Job{}, err
	}

	job.ID = uuid.New()
	job.SubmittedAt = time.Now().UTC()
	body, err := json.Marshal(job)
	if err != nil {
		return model.Job{}, fmt.Errorf("encode job: %w", err)
	}
	if err := m.publisher.Publish(m.queue, body); err != nil {
		return model.Job{}, err
	}

	m.log.Info("job submitted", "job_id", job.ID, "kind", job.Kind, "collection", job.Collection)
	return job, nil
}

func validate(job model.Job) error {
	if job.Collection == "" {
		return errors.New("collection is required")
	}
	switch job.Kind {
	case model.JobDiscover, model.JobSmoke:
		return nil
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

// Process runs job and persists its report. A report is returned even when
// the run itself reported an error.
func (m *JobManager) Process(ctx context.Context, job model.Job) (*model.Report, error) {
	report, runErr := m.run(ctx, job)
	if report == nil {
		return nil, runErr
	}
	if err := m.save(ctx, report); err != nil {
		return report, errors.Join(runErr, err)
	}
	return report, runErr
}

func (m *JobManager) run(ctx context.Context, job model.Job) (*model.Report, error) {
	if err := validate(job); err != nil {
		return nil, err
	}

	var (
		payload any
		runErr  error
	)
	switch job.Kind {
	case model.JobDiscover:
		payload, runErr = m.prober.Discover(ctx, job.Collection, job.Candidates, discovery.Options{Persist: job.Persist})
	case model.JobSmoke:
		payload = m.tester.Run(ctx, job.Collection, job.Record, job.Update)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	id := job.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &model.Report{
		ID:         id,
		Kind:       job.Kind,
		Collection: job.Collection,
		Payload:    body,
		CreatedAt:  time.Now().UTC(),
	}, runErr
}

func (m *JobManager) save(ctx context.Context, report *model.Report) error {
	if m.reports == nil {
		return nil
	}
	if err := m.reports.SaveReport(context.WithoutCancel(ctx), report); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// HandleDelivery is the worker callback. Undecodable or invalid jobs are
// rejected to the dead-letter queue; a job whose report cannot be saved is
// nacked without requeue.
func (m *JobManager) HandleDelivery(msg amqp.Delivery) {
	m.inFlight.Add(1)
	defer m.inFlight.Done()

	var job model.Job
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		m.log.Warn("undecodable job", "error", err)
		metrics.JobsProcessed.WithLabelValues("unknown", "rejected").Inc()
		_ = msg.Reject(false)
		return
	}
	if err := validate(job); err != nil {
		m.log.Warn("invalid job", "job_id", job.ID, "error", err)
		metrics.JobsProcessed.WithLabelValues(string(job.Kind), "rejected").Inc()
		_ = msg.Reject(false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	log := m.log.With("job_id", job.ID, "kind", job.Kind, "collection", job.Collection)

	report, runErr := m.run(ctx, job)
	if report == nil {
		log.Error("job failed", "error", runErr)
		metrics.JobsProcessed.WithLabelValues(string(job.Kind), "failed").Inc()
		_ = msg.Nack(false, false)
		return
	}
	if err := m.save(ctx, report); err != nil {
		log.Error("job report lost", "error", err)
		metrics.JobsProcessed.WithLabelValues(string(job.Kind), "failed").Inc()
		_ = msg.Nack(false, false)
		return
	}

	if runErr != nil {
		log.Warn("job finished with error", "report_id", report.ID, "error", runErr)
	} else {
		log.Info("job finished", "report_id", report.ID)
	}
	metrics.JobsProcessed.WithLabelValues(string(job.Kind), "done").Inc()
	_ = msg.Ack(false)
}

// StartWorkers starts a pool of n consumers on the job queue.
func (m *JobManager) StartWorkers(conn *amqp.Connection, n int) error {
	pool := worker.NewWorkerPool(conn, m.queue, n, m.HandleDelivery, m.log)
	if err := pool.Start(); err != nil {
		return err
	}
	return m.AttachPool(pool)
}

// AttachPool hands an already started pool to the manager, which stops it
// on Shutdown.
func (m *JobManager) AttachPool(pool *worker.WorkerPool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool != nil {
		pool.Stop()
		return errors.New("workers already running")
	}
	m.pool = pool
	return nil
}

// SetWorkers rescales the running pool to n consumers and returns the new size.
func (m *JobManager) SetWorkers(n int) (int, error) {
	if n < 1 {
		return 0, ErrInvalidWorkerCount
	}
	m.mu.Lock()
	pool := m.pool
	m.mu.Unlock()
	if pool == nil {
		return 0, ErrNoWorkers
	}
	if err := pool.SetWorkerCount(n); err != nil {
		return pool.Size(), fmt.Errorf("rescale workers: %w", err)
	}
	m.log.Info("worker pool rescaled", "workers", n)
	return pool.Size(), nil
}

// Shutdown stops the workers and waits for in-flight jobs.
func (m *JobManager) Shutdown() {
	m.mu.Lock()
	pool := m.pool
	m.pool = nil
	m.mu.Unlock()

	if pool != nil {
		pool.Stop()
	}
	m.inFlight.Wait()
	m.log.Info("job manager stopped")
}
