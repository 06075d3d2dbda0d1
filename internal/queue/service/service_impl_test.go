package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/andeanpay/nomina/internal/clock"
	queuedomain "github.com/andeanpay/nomina/internal/queue/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestQueue(t *testing.T) (*gorm.DB, queuedomain.Service, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&queuedomain.Job{}))

	node, _ := snowflake.NewNode(1)
	fake := clock.NewFakeClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: fake})
	return db, svc, fake
}

func TestEnqueueAndRunOnce_ExecutesHandler(t *testing.T) {
	db, svc, _ := newTestQueue(t)

	var got map[string]any
	svc.Register("demo.task", func(ctx context.Context, payload map[string]any) error {
		got = payload
		return nil
	})

	jobID, err := svc.Enqueue(context.Background(), "demo.task", map[string]any{"key": "value"})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	n, err := svc.RunOnce(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NotNil(t, got)
	assert.Equal(t, "value", got["key"])

	var job queuedomain.Job
	require.NoError(t, db.First(&job, "job_id = ?", jobID).Error)
	assert.Equal(t, queuedomain.JobDone, job.Status)
	assert.Equal(t, 1, job.Attempts)
}

func TestRunOnce_RetriesThenFails(t *testing.T) {
	db, svc, fake := newTestQueue(t)

	calls := 0
	svc.Register("flaky.task", func(ctx context.Context, payload map[string]any) error {
		calls++
		return errors.New("downstream unavailable")
	})

	jobID, err := svc.Enqueue(context.Background(), "flaky.task", nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.RunOnce(context.Background(), 10)
		require.NoError(t, err)
		fake.Advance(10 * time.Minute)
	}

	assert.Equal(t, 3, calls, "attempts capped")

	var job queuedomain.Job
	require.NoError(t, db.First(&job, "job_id = ?", jobID).Error)
	assert.Equal(t, queuedomain.JobFailed, job.Status)
	assert.NotEmpty(t, job.LastError)
}

func TestRunOnce_UnknownJobFailsWithoutRetry(t *testing.T) {
	db, svc, _ := newTestQueue(t)

	jobID, err := svc.Enqueue(context.Background(), "nobody.handles.this", nil)
	require.NoError(t, err)

	_, err = svc.RunOnce(context.Background(), 10)
	require.NoError(t, err)

	var job queuedomain.Job
	require.NoError(t, db.First(&job, "job_id = ?", jobID).Error)
	assert.Equal(t, queuedomain.JobFailed, job.Status)
}

func TestRunOnce_HonorsRunAtBackoff(t *testing.T) {
	db, svc, fake := newTestQueue(t)

	svc.Register("later.task", func(ctx context.Context, payload map[string]any) error {
		return errors.New("not yet")
	})

	jobID, err := svc.Enqueue(context.Background(), "later.task", nil)
	require.NoError(t, err)

	_, err = svc.RunOnce(context.Background(), 10)
	require.NoError(t, err)

	// Requeued with backoff: not claimable until the clock advances.
	n, err := svc.RunOnce(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	fake.Advance(2 * time.Minute)
	n, err = svc.RunOnce(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var job queuedomain.Job
	require.NoError(t, db.First(&job, "job_id = ?", jobID).Error)
	assert.Equal(t, 2, job.Attempts)
}

func TestEnqueue_RejectsEmptyName(t *testing.T) {
	_, svc, _ := newTestQueue(t)

	_, err := svc.Enqueue(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, queuedomain.ErrEmptyName)
}
