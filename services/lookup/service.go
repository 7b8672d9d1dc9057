// Package lookup queues traffic violation lookups and runs them in
// the background, one workflow per job.
package lookup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"platecheck/lib/captcha"
	"platecheck/lib/scrapers/csgt"
)

var tracer = otel.Tracer("platecheck.services.lookup")

const (
	MinAttempts = 1
	MaxAttempts = 10
)

// Runner executes one lookup to a terminal result. The production
// runner constructs a fresh csgt client and workflow per call; tests
// substitute a fake.
type Runner func(ctx context.Context, query csgt.Query, maxAttempts int) csgt.Result

// NewWorkflowRunner returns a Runner backed by the real site client.
// Each invocation gets its own client so concurrent jobs never share
// a cookie session.
func NewWorkflowRunner(clientOpts csgt.ClientOptions, solver captcha.Solver, imageDir string) Runner {
	return func(ctx context.Context, query csgt.Query, maxAttempts int) csgt.Result {
		client, err := csgt.NewClient(clientOpts)
		if err != nil {
			return csgt.Result{
				Query:       query,
				Status:      csgt.StatusError,
				ErrorDetail: fmt.Sprintf("construct client: %s", err),
			}
		}
		workflow := csgt.NewWorkflow(csgt.WorkflowOptions{
			Client:      client,
			Solver:      solver,
			MaxAttempts: maxAttempts,
			ImageDir:    imageDir,
		})
		return workflow.Run(ctx, query)
	}
}

type ServiceOptions struct {
	Store  Store
	Runner Runner
	// JobTimeout bounds a single background run, default 5 minutes.
	JobTimeout time.Duration
}

type Service struct {
	store      Store
	run        Runner
	jobTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(opts ServiceOptions) *Service {
	jobTimeout := opts.JobTimeout
	if jobTimeout == 0 {
		jobTimeout = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:      opts.Store,
		run:        opts.Runner,
		jobTimeout: jobTimeout,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Shutdown stops accepting the results of in-flight jobs and waits
// for their goroutines to drain.
func (s *Service) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

// Submit validates, persists and schedules a job, returning it in
// pending state.
func (s *Service) Submit(ctx context.Context, plate string, category csgt.Category, maxAttempts int) (*Job, error) {
	ctx, span := tracer.Start(ctx, "Submit")
	defer span.End()

	query := csgt.Query{Plate: plate, Category: category}
	if query.NormalizedPlate() == "" {
		return nil, fmt.Errorf("plate is required")
	}
	switch category {
	case csgt.CategoryCar, csgt.CategoryMotorcycle, csgt.CategoryElectricBike:
	default:
		return nil, fmt.Errorf("unknown vehicle category %d", int(category))
	}
	if maxAttempts == 0 {
		maxAttempts = csgt.DefaultMaxAttempts
	}
	if maxAttempts < MinAttempts || maxAttempts > MaxAttempts {
		return nil, fmt.Errorf("max attempts must be between %d and %d", MinAttempts, MaxAttempts)
	}

	job := &Job{
		ID:          uuid.NewString(),
		Plate:       query.NormalizedPlate(),
		Category:    category,
		MaxAttempts: maxAttempts,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	span.SetAttributes(
		attribute.String("job_id", job.ID),
		attribute.String("plate", job.Plate),
	)

	if err := s.store.Put(ctx, job); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.wg.Add(1)
	go s.execute(*job)

	return job, nil
}

// execute runs a job to completion in the background. It holds its
// own copy of the job record; status transitions go straight to the
// store.
func (s *Service) execute(job Job) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.ctx, s.jobTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("job_id", job.ID),
		attribute.String("plate", job.Plate),
	)

	job.Status = StatusRunning
	if err := s.store.Put(ctx, &job); err != nil {
		slog.ErrorContext(ctx, "failed to mark job running", "job_id", job.ID, "err", err)
		return
	}

	result := s.run(ctx, csgt.Query{Plate: job.Plate, Category: job.Category}, job.MaxAttempts)

	now := time.Now().UTC()
	job.Result = &result
	job.CompletedAt = &now
	switch result.Status {
	case csgt.StatusError:
		job.Status = StatusFailed
		job.ErrorDetail = result.ErrorDetail
		span.SetStatus(codes.Error, result.ErrorDetail)
	default:
		job.Status = StatusCompleted
	}

	if err := s.store.Put(ctx, &job); err != nil {
		slog.ErrorContext(ctx, "failed to persist job result", "job_id", job.ID, "err", err)
		return
	}
	slog.InfoContext(ctx, "lookup job finished",
		"job_id", job.ID,
		"plate", job.Plate,
		"status", string(job.Status),
		"attempts", result.Attempts,
	)
}

func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Job, error) {
	return s.store.List(ctx, filter)
}

// Delete refuses nothing: removing a running job only drops its
// record, the background goroutine finishes and its final Put
// re-inserts it. Callers wanting a clean sweep delete after
// completion.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	return s.store.Delete(ctx, id)
}

type StatsSummary struct {
	Total       int            `json:"total"`
	ByStatus    map[Status]int `json:"by_status"`
	SuccessRate float64        `json:"success_rate"`
}

// Stats aggregates job counts. SuccessRate is completed over all
// finished jobs; zero finished jobs yields zero.
func (s *Service) Stats(ctx context.Context) (StatsSummary, error) {
	byStatus, err := s.store.Stats(ctx)
	if err != nil {
		return StatsSummary{}, err
	}
	summary := StatsSummary{ByStatus: byStatus}
	for _, count := range byStatus {
		summary.Total += count
	}
	finished := byStatus[StatusCompleted] + byStatus[StatusFailed]
	if finished > 0 {
		summary.SuccessRate = float64(byStatus[StatusCompleted]) / float64(finished)
	}
	return summary, nil
}
