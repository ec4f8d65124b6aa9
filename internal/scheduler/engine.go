// Package scheduler runs durable time-based side effects (reminders,
// follow-ups) exactly once per logical event. Job creation is deduplicated
// by idempotency key; handlers are expected to be idempotent themselves.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ktwhotel/concierge/internal/models"
	"gorm.io/gorm"
)

// Handler executes one job. A returned error triggers a retry until the
// job's max retries are spent.
type Handler func(ctx context.Context, job *models.Job) error

// EngineOpts configures an Engine.
type EngineOpts struct {
	DB   *gorm.DB
	Tick time.Duration    // worker poll interval, defaults to 1s
	Now  func() time.Time // defaults to time.Now
}

// Engine is the in-process scheduler over the durable job table.
type Engine struct {
	db   *gorm.DB
	tick time.Duration
	now  func() time.Time

	mu       sync.RWMutex
	handlers map[string]Handler

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewEngine validates opts and returns an Engine.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("scheduler: db is required")
	}
	if opts.Tick == 0 {
		opts.Tick = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		db:       opts.DB,
		tick:     opts.Tick,
		now:      opts.Now,
		handlers: make(map[string]Handler),
		stopped:  make(chan struct{}),
	}, nil
}

// RegisterHandler binds a handler to a job type. A job whose type has no
// handler at execution time fails permanently.
func (e *Engine) RegisterHandler(jobType string, fn Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[jobType] = fn
}

// ScheduleOpts carries the optional knobs for Schedule.
type ScheduleOpts struct {
	MaxRetries     int // defaults to 3
	RetryDelaySecs int // defaults to 60
}

// Schedule creates a pending job and returns its id. When a pending job
// with the same idempotency key already exists, its id is returned and no
// new row is created.
func (e *Engine) Schedule(jobType, tenantID string, runAt time.Time, payload string, idemKey string, opts ScheduleOpts) (string, error) {
	if jobType == "" {
		return "", fmt.Errorf("scheduler: job type is required")
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelaySecs == 0 {
		opts.RetryDelaySecs = 60
	}

	var jobID string
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if idemKey != "" {
			var existing models.Job
			err := tx.Where("idempotency_key = ? AND status = ?", idemKey, models.JobPending).
				First(&existing).Error
			if err == nil {
				jobID = existing.JobID
				return nil
			}
			if err != gorm.ErrRecordNotFound {
				return err
			}
		}
		job := models.Job{
			JobID:          uuid.NewString(),
			JobType:        jobType,
			TenantID:       tenantID,
			RunAt:          runAt,
			Payload:        payload,
			Status:         models.JobPending,
			MaxRetries:     opts.MaxRetries,
			RetryDelaySecs: opts.RetryDelaySecs,
			IdempotencyKey: idemKey,
			CreatedAt:      e.now(),
			UpdatedAt:      e.now(),
		}
		if err := tx.Create(&job).Error; err != nil {
			return err
		}
		jobID = job.JobID
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scheduler: schedule %s: %w", jobType, err)
	}
	return jobID, nil
}

// Cancel transitions a pending job to cancelled. Jobs in any other state
// are left alone.
func (e *Engine) Cancel(jobID string) error {
	err := e.db.Model(&models.Job{}).
		Where("job_id = ? AND status = ?", jobID, models.JobPending).
		Updates(map[string]interface{}{"status": models.JobCancelled, "updated_at": e.now()}).Error
	if err != nil {
		return fmt.Errorf("scheduler: cancel %s: %w", jobID, err)
	}
	return nil
}

// Start runs the worker loop until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(e.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				close(e.stopped)
				return
			case <-ticker.C:
				e.RunDue(ctx)
			}
		}
	}()
}

// Stop blocks until the worker loop has exited.
func (e *Engine) Stop() {
	<-e.stopped
}

// RunDue executes every pending job whose run time has arrived. Exposed so
// tests can drive the engine without the ticker.
func (e *Engine) RunDue(ctx context.Context) {
	var due []models.Job
	err := e.db.Where("status = ? AND run_at <= ?", models.JobPending, e.now()).
		Order("run_at").Find(&due).Error
	if err != nil {
		log.Printf("scheduler: select due jobs: %v", err)
		return
	}
	for i := range due {
		e.runOne(ctx, &due[i])
	}
}

func (e *Engine) runOne(ctx context.Context, job *models.Job) {
	// claim; another worker may have taken it between select and here
	res := e.db.Model(&models.Job{}).
		Where("job_id = ? AND status = ?", job.JobID, models.JobPending).
		Updates(map[string]interface{}{"status": models.JobRunning, "updated_at": e.now()})
	if res.Error != nil || res.RowsAffected == 0 {
		return
	}

	e.mu.RLock()
	handler, ok := e.handlers[job.JobType]
	e.mu.RUnlock()
	if !ok {
		e.finish(job, models.JobFailed, fmt.Sprintf("no handler registered for %s", job.JobType))
		return
	}

	if err := handler(ctx, job); err != nil {
		if job.RetryCount+1 >= job.MaxRetries {
			e.finish(job, models.JobFailed, err.Error())
			return
		}
		retryAt := e.now().Add(time.Duration(job.RetryDelaySecs) * time.Second)
		uerr := e.db.Model(&models.Job{}).Where("job_id = ?", job.JobID).
			Updates(map[string]interface{}{
				"status":      models.JobPending,
				"retry_count": job.RetryCount + 1,
				"run_at":      retryAt,
				"last_error":  err.Error(),
				"updated_at":  e.now(),
			}).Error
		if uerr != nil {
			log.Printf("scheduler: reschedule %s: %v", job.JobID, uerr)
		}
		return
	}
	e.finish(job, models.JobCompleted, "")
}

func (e *Engine) finish(job *models.Job, status, lastError string) {
	err := e.db.Model(&models.Job{}).Where("job_id = ?", job.JobID).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": lastError,
			"updated_at": e.now(),
		}).Error
	if err != nil {
		log.Printf("scheduler: finish %s as %s: %v", job.JobID, status, err)
	}
}
