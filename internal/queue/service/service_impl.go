package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/andeanpay/nomina/internal/clock"
	"github.com/andeanpay/nomina/internal/metrics"
	queuedomain "github.com/andeanpay/nomina/internal/queue/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxAttempts = 3

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	metrics *metrics.Metrics

	mu       sync.RWMutex
	handlers map[string]queuedomain.Handler
}

func NewService(p Params) queuedomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("queue.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		metrics:  p.Metrics,
		handlers: make(map[string]queuedomain.Handler),
	}
}

func (s *Service) Register(name string, handler queuedomain.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = handler
}

func (s *Service) Enqueue(ctx context.Context, name string, payload map[string]any) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", queuedomain.ErrEmptyName
	}

	if payload == nil {
		payload = map[string]any{}
	}

	jobID := uuid.NewString()
	job := queuedomain.Job{
		ID:      s.genID.Generate(),
		JobID:   jobID,
		Name:    name,
		Payload: datatypes.JSONMap(payload),
		Status:  queuedomain.JobPending,
		RunAt:   s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
		return "", fmt.Errorf("enqueue %s: %w", name, err)
	}
	s.log.Info("job enqueued", zap.String("job", name), zap.String("job_id", jobID))
	return jobID, nil
}

func (s *Service) RunOnce(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = 10
	}
	now := s.clock.Now()

	var candidates []queuedomain.Job
	err := s.db.WithContext(ctx).
		Where("status = ? AND run_at <= ?", queuedomain.JobPending, now).
		Order("run_at, id").
		Limit(batch).
		Find(&candidates).Error
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, job := range candidates {
		claimed, err := s.claim(ctx, &job, now)
		if err != nil {
			return processed, err
		}
		if !claimed {
			continue
		}
		s.execute(ctx, &job)
		processed++
	}
	return processed, nil
}

// claim flips a pending job to running. The guarded update keeps claims
// safe across concurrent workers without dialect-specific locking.
func (s *Service) claim(ctx context.Context, job *queuedomain.Job, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Exec(
		`UPDATE queue_jobs
		 SET status = ?, locked_at = ?, attempts = attempts + 1, updated_at = ?
		 WHERE id = ? AND status = ?`,
		queuedomain.JobRunning,
		now,
		now,
		job.ID,
		queuedomain.JobPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	job.Attempts++
	return true, nil
}

func (s *Service) execute(ctx context.Context, job *queuedomain.Job) {
	s.mu.RLock()
	handler, ok := s.handlers[job.Name]
	s.mu.RUnlock()

	log := s.log.With(zap.String("job", job.Name), zap.String("job_id", job.JobID))

	if !ok {
		s.finish(ctx, job, queuedomain.JobFailed, queuedomain.ErrUnknownJob.Error())
		s.metrics.IncQueueJob(job.Name, "unknown")
		log.Error("no handler registered for job")
		return
	}

	err := handler(ctx, job.Payload)
	if err == nil {
		s.finish(ctx, job, queuedomain.JobDone, "")
		s.metrics.IncQueueJob(job.Name, "done")
		return
	}

	if job.Attempts < maxAttempts {
		// Requeue with linear backoff; delivery stays at-least-once.
		retryAt := s.clock.Now().Add(time.Duration(job.Attempts) * time.Minute)
		res := s.db.WithContext(ctx).Exec(
			`UPDATE queue_jobs SET status = ?, run_at = ?, locked_at = NULL, last_error = ?, updated_at = ? WHERE id = ?`,
			queuedomain.JobPending,
			retryAt,
			err.Error(),
			s.clock.Now(),
			job.ID,
		)
		if res.Error != nil {
			log.Error("failed to requeue job", zap.Error(res.Error))
		}
		s.metrics.IncQueueJob(job.Name, "retried")
		log.Warn("job failed, requeued", zap.Int("attempts", job.Attempts), zap.Error(err))
		return
	}

	s.finish(ctx, job, queuedomain.JobFailed, err.Error())
	s.metrics.IncQueueJob(job.Name, "failed")
	log.Error("job failed permanently", zap.Int("attempts", job.Attempts), zap.Error(err))
}

func (s *Service) finish(ctx context.Context, job *queuedomain.Job, status queuedomain.JobStatus, lastError string) {
	res := s.db.WithContext(ctx).Exec(
		`UPDATE queue_jobs SET status = ?, locked_at = NULL, last_error = ?, updated_at = ? WHERE id = ?`,
		status,
		lastError,
		s.clock.Now(),
		job.ID,
	)
	if res.Error != nil {
		s.log.Error("failed to finalize job", zap.String("job_id", job.JobID), zap.Error(res.Error))
	}
}
