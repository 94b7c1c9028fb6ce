package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"minecloud-platform/internal/ledger"
	"minecloud-platform/internal/scheduler"
	"minecloud-platform/internal/storages"
)

// Session владеет агрегатом одного аутентифицированного пользователя в памяти.
// Агрегат мутируется и обработчиками запросов, и фоновыми процессами, поэтому
// каждая мутация выполняется под мьютексом сессии: это эквивалент кооперативной
// модели "обработчик выполняется до конца", только в многопоточной среде.
// Пока идет сессия, агрегат в памяти считается источником истины; хранилище
// профилей догоняет его периодическими сбросами снимка.
type Session struct {
	email string
	svc   *PlatformService

	mu   sync.Mutex
	user *ledger.User

	unread     atomic.Int64
	lastActive atomic.Int64
	sched      *scheduler.Scheduler
}

// Email возвращает нормализованный email владельца сессии
func (s *Session) Email() string {
	return s.email
}

// Unread возвращает текущее значение счетчика непрочитанных сообщений чата
func (s *Session) Unread() int64 {
	return s.unread.Load()
}

// touch отмечает активность владельца сессии
func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// withUser выполняет мутацию агрегата под блокировкой сессии
func (s *Session) withUser(fn func(u *ledger.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.user)
}

// Snapshot возвращает глубокую копию агрегата для записи в хранилище
func (s *Session) Snapshot() (*storages.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone, err := s.user.Clone()
	if err != nil {
		return nil, err
	}

	return &storages.Profile{Email: s.email, User: clone}, nil
}

// replaceUser заменяет агрегат в памяти (после административной записи
// в хранилище)
func (s *Session) replaceUser(user *ledger.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

// AccrueTick выполняет один тик начисления прибыли.
// Реализует scheduler.Target.
func (s *Session) AccrueTick(now time.Time) {
	s.mu.Lock()
	result := s.user.AccrueAll(now)
	userID := s.user.ID
	s.mu.Unlock()

	if s.svc.producer == nil {
		return
	}

	// События о завершении циклов отправляются best-effort вне блокировки
	for _, device := range result.Completed {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.svc.producer.SendCycleCompleted(ctx, userID, s.email, device.InstanceID, device.Name); err != nil {
			s.svc.logger.Warnf("Failed to send cycle completion event: %v", err)
		}
		cancel()
	}
}

// SyncPush выполняет best-effort запись снимка агрегата в хранилище профилей.
// Реализует scheduler.Target.
func (s *Session) SyncPush(ctx context.Context) {
	profile, err := s.Snapshot()
	if err != nil {
		s.svc.logger.Warnf("Failed to snapshot session %s: %v", s.email, err)
		return
	}

	if err := s.svc.storage.UpsertProfile(ctx, profile); err != nil {
		// Нет ни повтора, ни очереди: следующий интервал отправит
		// более свежий снимок
		s.svc.logger.Warnf("Sync push failed for %s: %v", s.email, err)
	}
}

// RefreshUnread пересчитывает счетчик непрочитанных сообщений чата.
// Реализует scheduler.Target.
func (s *Session) RefreshUnread(ctx context.Context) {
	if s.svc.chat == nil {
		return
	}

	s.mu.Lock()
	lastSeen := s.user.LastSeenChatTime
	s.mu.Unlock()

	count, err := s.svc.chat.CountSince(ctx, lastSeen, s.email)
	if err != nil {
		s.svc.logger.Debugf("Unread poll failed for %s: %v", s.email, err)
		return
	}

	s.unread.Store(count)
}

// CheckIdle закрывает сессию, по которой давно не было запросов: иначе каждый
// ушедший пользователь навсегда оставляет за собой тик начисления и опрос чата.
// Реализует scheduler.Target.
func (s *Session) CheckIdle() {
	ttl := s.svc.idleTimeout
	if ttl <= 0 {
		return
	}
	if time.Since(time.Unix(0, s.lastActive.Load())) < ttl {
		return
	}

	s.svc.logger.Infof("Closing idle session: %s", s.email)

	// Закрытие выполняется в отдельной горутине: Shutdown планировщика ждет
	// завершения текущих задач, включая эту
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.svc.CloseSession(ctx, s.email)
	}()
}

// OpenSession загружает профиль из хранилища и открывает для него сессию с
// фоновыми процессами. Если сессия уже открыта, возвращается существующая:
// на один email приходится не более одной сессии.
func (svc *PlatformService) OpenSession(ctx context.Context, email string) (*Session, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if session, ok := svc.sessions[email]; ok {
		session.touch()
		return session, nil
	}

	profile, err := svc.storage.GetProfile(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	session := &Session{
		email: email,
		svc:   svc,
		user:  profile.User,
	}
	session.touch()

	sched, err := scheduler.Start(session, svc.intervals, svc.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start session scheduler: %w", err)
	}
	session.sched = sched

	svc.sessions[email] = session
	svc.logger.Infof("Session opened: %s", email)

	return session, nil
}

// GetSession возвращает открытую сессию или открывает ее заново (например,
// после перезапуска сервера с еще валидным токеном)
func (svc *PlatformService) GetSession(ctx context.Context, email string) (*Session, error) {
	svc.mu.RLock()
	session, ok := svc.sessions[email]
	svc.mu.RUnlock()

	if ok {
		session.touch()
		return session, nil
	}
	return svc.OpenSession(ctx, email)
}

// lookupSession возвращает открытую сессию без открытия новой
func (svc *PlatformService) lookupSession(email string) *Session {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.sessions[email]
}

// CloseSession сбрасывает финальный снимок, останавливает фоновые процессы и
// удаляет сессию
func (svc *PlatformService) CloseSession(ctx context.Context, email string) {
	svc.mu.Lock()
	session, ok := svc.sessions[email]
	if ok {
		delete(svc.sessions, email)
	}
	svc.mu.Unlock()

	if !ok {
		return
	}

	session.SyncPush(ctx)
	if session.sched != nil {
		if err := session.sched.Shutdown(); err != nil {
			svc.logger.Warnf("Failed to stop scheduler for %s: %v", email, err)
		}
	}

	svc.logger.Infof("Session closed: %s", email)
}

// CloseAllSessions закрывает все сессии (при остановке сервера)
func (svc *PlatformService) CloseAllSessions(ctx context.Context) {
	svc.mu.Lock()
	emails := make([]string, 0, len(svc.sessions))
	for email := range svc.sessions {
		emails = append(emails, email)
	}
	svc.mu.Unlock()

	for _, email := range emails {
		svc.CloseSession(ctx, email)
	}
}

// pushSnapshot асинхронно пишет снимок сессии в хранилище после мутации.
// Ошибки не откатывают мутацию в памяти.
func (svc *PlatformService) pushSnapshot(session *Session) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		session.SyncPush(ctx)
	}()
}
