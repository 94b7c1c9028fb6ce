package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// countingTarget - мок для Target
type countingTarget struct {
	accrueTicks atomic.Int64
	syncPushes  atomic.Int64
	unreadPolls atomic.Int64
	idleChecks  atomic.Int64
}

func (t *countingTarget) AccrueTick(now time.Time) {
	t.accrueTicks.Add(1)
}

func (t *countingTarget) SyncPush(ctx context.Context) {
	t.syncPushes.Add(1)
}

func (t *countingTarget) RefreshUnread(ctx context.Context) {
	t.unreadPolls.Add(1)
}

func (t *countingTarget) CheckIdle() {
	t.idleChecks.Add(1)
}

func TestSchedulerRunsAllJobs(t *testing.T) {
	target := &countingTarget{}
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	intervals := Intervals{
		Accrual:   10 * time.Millisecond,
		Sync:      10 * time.Millisecond,
		Unread:    10 * time.Millisecond,
		IdleCheck: 10 * time.Millisecond,
	}

	sched, err := Start(target, intervals, logger)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Даем всем процессам время на несколько срабатываний
	time.Sleep(200 * time.Millisecond)

	if err := sched.Shutdown(); err != nil {
		t.Fatalf("Expected clean shutdown, got %v", err)
	}

	if target.accrueTicks.Load() == 0 {
		t.Error("Expected accrual ticks to fire")
	}
	if target.syncPushes.Load() == 0 {
		t.Error("Expected sync pushes to fire")
	}
	if target.unreadPolls.Load() == 0 {
		t.Error("Expected unread polls to fire")
	}
	if target.idleChecks.Load() == 0 {
		t.Error("Expected idle checks to fire")
	}
}

func TestSchedulerIdleCheckDisabled(t *testing.T) {
	target := &countingTarget{}
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	// Нулевой интервал отключает проверку простоя
	intervals := Intervals{
		Accrual: 10 * time.Millisecond,
		Sync:    time.Hour,
		Unread:  time.Hour,
	}

	sched, err := Start(target, intervals, logger)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if err := sched.Shutdown(); err != nil {
		t.Fatalf("Expected clean shutdown, got %v", err)
	}

	if target.idleChecks.Load() != 0 {
		t.Errorf("Expected no idle checks, got %d", target.idleChecks.Load())
	}
}

func TestSchedulerShutdownStopsJobs(t *testing.T) {
	target := &countingTarget{}
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	intervals := Intervals{
		Accrual: 10 * time.Millisecond,
		Sync:    time.Hour,
		Unread:  time.Hour,
	}

	sched, err := Start(target, intervals, logger)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if err := sched.Shutdown(); err != nil {
		t.Fatalf("Expected clean shutdown, got %v", err)
	}

	// После остановки тики больше не приходят
	before := target.accrueTicks.Load()
	time.Sleep(100 * time.Millisecond)
	after := target.accrueTicks.Load()

	if before != after {
		t.Fatalf("Expected no ticks after shutdown, got %d more", after-before)
	}
}
