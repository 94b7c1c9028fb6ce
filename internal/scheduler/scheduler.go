package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// Target набор фоновых операций одной сессии. Каждая операция идемпотентна
// по отношению к повторным запускам: тик начисления пересчитывает прибыль от
// сохраненной отметки, сброс снимка пишет последнее состояние целиком, счетчик
// непрочитанных выводится заново на каждом опросе.
type Target interface {
	// AccrueTick один тик начисления прибыли по всем работающим устройствам
	AccrueTick(now time.Time)

	// SyncPush best-effort запись текущего снимка агрегата в хранилище
	// профилей; ошибки логируются и игнорируются, следующий интервал просто
	// отправит более свежий снимок
	SyncPush(ctx context.Context)

	// RefreshUnread пересчитывает счетчик непрочитанных сообщений чата
	RefreshUnread(ctx context.Context)

	// CheckIdle проверяет, не пора ли закрыть сессию по простою
	CheckIdle()
}

// Intervals интервалы фоновых процессов. Нулевой IdleCheck отключает
// проверку простоя.
type Intervals struct {
	Accrual   time.Duration
	Sync      time.Duration
	Unread    time.Duration
	IdleCheck time.Duration
}

// Scheduler управляет фоновыми процессами одной сессии. Все процессы
// запускаются вместе при открытии сессии и останавливаются вместе при
// ее закрытии.
type Scheduler struct {
	sched  gocron.Scheduler
	logger *logrus.Logger
}

// Start создает и запускает планировщик с фоновыми процессами сессии
func Start(target Target, intervals Intervals, logger *logrus.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	// Тик начисления прибыли
	_, err = sched.NewJob(
		gocron.DurationJob(intervals.Accrual),
		gocron.NewTask(func() {
			target.AccrueTick(time.Now())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule accrual tick: %w", err)
	}

	// Периодический сброс снимка в хранилище профилей
	_, err = sched.NewJob(
		gocron.DurationJob(intervals.Sync),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			target.SyncPush(ctx)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule sync push: %w", err)
	}

	// Опрос счетчика непрочитанных сообщений чата
	_, err = sched.NewJob(
		gocron.DurationJob(intervals.Unread),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			target.RefreshUnread(ctx)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule unread poll: %w", err)
	}

	// Проверка простоя сессии
	if intervals.IdleCheck > 0 {
		_, err = sched.NewJob(
			gocron.DurationJob(intervals.IdleCheck),
			gocron.NewTask(target.CheckIdle),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to schedule idle check: %w", err)
		}
	}

	sched.Start()

	return &Scheduler{
		sched:  sched,
		logger: logger,
	}, nil
}

// Shutdown останавливает все процессы вместе
func (s *Scheduler) Shutdown() error {
	if err := s.sched.Shutdown(); err != nil {
		s.logger.Errorf("Failed to shut down session scheduler: %v", err)
		return fmt.Errorf("failed to shut down scheduler: %w", err)
	}
	return nil
}
