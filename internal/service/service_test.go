package service

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"minecloud-platform/internal/config"
	"minecloud-platform/internal/ledger"
	"minecloud-platform/internal/storages"
)

// MockStorage - мок для Storage
type MockStorage struct {
	mu       sync.Mutex
	profiles map[string]*storages.Profile
}

func NewMockStorage() *MockStorage {
	return &MockStorage{
		profiles: make(map[string]*storages.Profile),
	}
}

// cloneProfile возвращает глубокую копию, как это делает реальное хранилище
// при десериализации JSON-документа
func cloneProfile(p *storages.Profile) (*storages.Profile, error) {
	user, err := p.User.Clone()
	if err != nil {
		return nil, err
	}
	return &storages.Profile{
		Email:     p.Email,
		User:      user,
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}, nil
}

func (m *MockStorage) CreateProfile(ctx context.Context, profile *storages.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, err := cloneProfile(profile)
	if err != nil {
		return err
	}
	stored.Version = 1
	m.profiles[profile.Email] = stored
	return nil
}

func (m *MockStorage) GetProfile(ctx context.Context, email string) (*storages.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, exists := m.profiles[email]; exists {
		return cloneProfile(p)
	}
	return nil, storages.ErrProfileNotFound
}

func (m *MockStorage) GetProfileByUserID(ctx context.Context, userID string) (*storages.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.profiles {
		if p.User.ID == userID {
			return cloneProfile(p)
		}
	}
	return nil, storages.ErrProfileNotFound
}

func (m *MockStorage) GetProfileByReferralCode(ctx context.Context, code string) (*storages.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.profiles {
		if p.User.ReferralCode == code {
			return cloneProfile(p)
		}
	}
	return nil, storages.ErrProfileNotFound
}

func (m *MockStorage) ListProfiles(ctx context.Context) ([]storages.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []storages.Profile
	for _, p := range m.profiles {
		clone, err := cloneProfile(p)
		if err != nil {
			return nil, err
		}
		result = append(result, *clone)
	}
	return result, nil
}

func (m *MockStorage) EmailExists(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.profiles[email]
	return exists, nil
}

func (m *MockStorage) UpsertProfile(ctx context.Context, profile *storages.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, err := cloneProfile(profile)
	if err != nil {
		return err
	}
	if existing, exists := m.profiles[profile.Email]; exists {
		stored.Version = existing.Version + 1
	} else {
		stored.Version = 1
	}
	m.profiles[profile.Email] = stored
	return nil
}

func (m *MockStorage) UpdateProfileCAS(ctx context.Context, profile *storages.Profile, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.profiles[profile.Email]
	if !exists {
		return storages.ErrProfileNotFound
	}
	if existing.Version != expectedVersion {
		return storages.ErrVersionConflict
	}

	stored, err := cloneProfile(profile)
	if err != nil {
		return err
	}
	stored.Version = expectedVersion + 1
	m.profiles[profile.Email] = stored
	profile.Version = stored.Version
	return nil
}

func (m *MockStorage) Ping(ctx context.Context) error {
	return nil
}

func (m *MockStorage) Close() error {
	return nil
}

// setVersion выставляет версию хранимого профиля для имитации конкурентной
// записи
func (m *MockStorage) setVersion(email string, version int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, exists := m.profiles[email]; exists {
		p.Version = version
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	// Длинные интервалы: фоновые процессы не должны срабатывать в тестах
	cfg.Scheduler.AccrualInterval = time.Hour
	cfg.Scheduler.SyncInterval = time.Hour
	cfg.Scheduler.UnreadInterval = time.Hour
	cfg.Scheduler.IdleCheckInterval = time.Hour
	cfg.Scheduler.SessionIdleTimeout = time.Hour
	cfg.Platform.MinDepositAmount = 10
	cfg.Platform.MinWithdrawalAmount = 10
	cfg.Platform.WithdrawalFeePercent = 3
	cfg.Platform.ReferralBonusPercent = 5
	cfg.Platform.WelcomeGiftPrice = 5
	cfg.Platform.WelcomeGiftHours = 24
	cfg.Platform.WelcomeGiftDailyRate = 100
	return cfg
}

func newTestService() (*PlatformService, *MockStorage) {
	storage := NewMockStorage()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	return NewPlatformService(storage, nil, nil, testConfig(), logger), storage
}

// Tests

func TestRegister(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "Test@Example.com", "password123", "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Email нормализуется при регистрации
	if user.Email != "test@example.com" {
		t.Fatalf("Expected normalized email, got %s", user.Email)
	}
	if user.Role != ledger.RoleUser {
		t.Fatalf("Expected role USER, got %s", user.Role)
	}
	if user.ReferralCode == "" {
		t.Fatal("Expected a generated referral code")
	}

	// Повторная регистрация того же email отклоняется
	if _, err := svc.Register(ctx, "test@example.com", "password123", ""); err == nil {
		t.Fatal("Expected error for duplicate email")
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "test@example.com", "password123", ""); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, err := svc.Authenticate(ctx, "test@example.com", "password123"); err != nil {
		t.Fatalf("Expected successful authentication, got %v", err)
	}

	if _, err := svc.Authenticate(ctx, "test@example.com", "wrong"); err == nil {
		t.Fatal("Expected error for wrong password")
	}

	if _, err := svc.Authenticate(ctx, "missing@example.com", "password123"); err == nil {
		t.Fatal("Expected error for unknown email")
	}
}

func TestResetPassword(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "test@example.com", "oldpassword", ""); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := svc.ResetPassword(ctx, "test@example.com", "newpassword"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, err := svc.Authenticate(ctx, "test@example.com", "oldpassword"); err == nil {
		t.Fatal("Old password must no longer work")
	}
	if _, err := svc.Authenticate(ctx, "test@example.com", "newpassword"); err != nil {
		t.Fatalf("New password must work, got %v", err)
	}
}

func TestSessionIsSingletonPerEmail(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "test@example.com", "password123", ""); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	s1, err := svc.OpenSession(ctx, "test@example.com")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer svc.CloseAllSessions(ctx)

	s2, err := svc.OpenSession(ctx, "test@example.com")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if s1 != s2 {
		t.Fatal("Expected a single session per email")
	}
}

func TestDepositAndApprove(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "test@example.com", "password123", "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	session, err := svc.OpenSession(ctx, "test@example.com")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer svc.CloseAllSessions(ctx)

	tx, err := svc.DepositFunds(ctx, session, 100, "0xabc")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if tx.Status != ledger.TransactionStatusPending {
		t.Fatalf("Expected PENDING, got %s", tx.Status)
	}

	// Подтверждение администратором зачисляет сумму и обновляет живую сессию
	if _, err := svc.ApproveTransaction(ctx, user.ID, tx.ID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	current, err := svc.CurrentUser(session)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if current.Balance != 100 || current.TotalDeposits != 100 {
		t.Fatalf("Expected approved deposit credited, balance=%f deposits=%f",
			current.Balance, current.TotalDeposits)
	}
}

func TestWithdrawAndReject(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "test@example.com", "password123", "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	session, err := svc.OpenSession(ctx, "test@example.com")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer svc.CloseAllSessions(ctx)

	if _, err := svc.AdjustBalance(ctx, "test@example.com", 100); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	tx, err := svc.WithdrawFunds(ctx, session, 50, "TRX-addr")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if math.Abs(tx.NetAmount-48.5) > 1e-9 {
		t.Fatalf("Expected net 48.5 after 3%% fee, got %f", tx.NetAmount)
	}

	current, _ := svc.CurrentUser(session)
	if current.Balance != 50 {
		t.Fatalf("Expected gross debit, balance=%f", current.Balance)
	}

	// Отклонение возвращает списанную сумму
	if _, err := svc.RejectTransaction(ctx, user.ID, tx.ID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	current, _ = svc.CurrentUser(session)
	if current.Balance != 100 {
		t.Fatalf("Expected refund after rejection, balance=%f", current.Balance)
	}
}

func TestActivateCycleTierEnforced(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "test@example.com", "password123", ""); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	session, err := svc.OpenSession(ctx, "test@example.com")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer svc.CloseAllSessions(ctx)

	if _, err := svc.AdjustBalance(ctx, "test@example.com", 100); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	device, err := svc.PurchaseDevice(ctx, session, "pkg-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Произвольная пара (длительность, ставка) отклоняется сервисным слоем
	if _, err := svc.ActivateCycle(session, device.InstanceID, 30, 10.0); err == nil {
		t.Fatal("Expected error for invalid activation tier")
	}

	// Разрешенный пресет проходит
	if _, err := svc.ActivateCycle(session, device.InstanceID, 7, 2.5); err != nil {
		t.Fatalf("Expected no error for valid tier, got %v", err)
	}
}

func TestReferralLinkingAndBonus(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	referrer, err := svc.Register(ctx, "referrer@example.com", "password123", "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	referred, err := svc.Register(ctx, "referred@example.com", "password123", referrer.ReferralCode)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if referred.ReferredBy != referrer.ReferralCode {
		t.Fatalf("Expected referral link, got %q", referred.ReferredBy)
	}

	// Приглашенный появился в списке реферера
	profile, err := svc.storage.GetProfile(ctx, "referrer@example.com")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(profile.User.ReferralsList) != 1 || profile.User.ReferralsList[0].Email != "referred@example.com" {
		t.Fatal("Expected referred user in referrer's list")
	}

	// Первая покупка приглашенного приносит рефереру 5% бонуса
	session, err := svc.OpenSession(ctx, "referred@example.com")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer svc.CloseAllSessions(ctx)

	if _, err := svc.AdjustBalance(ctx, "referred@example.com", 100); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := svc.PurchaseDevice(ctx, session, "pkg-1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	profile, err = svc.storage.GetProfile(ctx, "referrer@example.com")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	expected := 12.0 * 0.05
	if math.Abs(profile.User.ReferralEarnings-expected) > 1e-9 {
		t.Fatalf("Expected referral earnings %f, got %f", expected, profile.User.ReferralEarnings)
	}
	if !profile.User.ReferralsList[0].HasPurchased {
		t.Fatal("Expected referral entry marked as purchased")
	}

	// Вторая покупка бонуса не приносит
	if _, err := svc.PurchaseDevice(ctx, session, "pkg-1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	profile, _ = svc.storage.GetProfile(ctx, "referrer@example.com")
	if math.Abs(profile.User.ReferralEarnings-expected) > 1e-9 {
		t.Fatalf("Second purchase must not grant a bonus, got %f", profile.User.ReferralEarnings)
	}
}

func TestClaimWelcomeGift(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "test@example.com", "password123", ""); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	session, err := svc.OpenSession(ctx, "test@example.com")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer svc.CloseAllSessions(ctx)

	device, err := svc.ClaimWelcomeGift(session)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if device.Status != ledger.DeviceStatusRunning {
		t.Fatalf("Expected gift RUNNING, got %s", device.Status)
	}

	if _, err := svc.ClaimWelcomeGift(session); err == nil {
		t.Fatal("Expected error for repeated gift claim")
	}
}

func TestVersionedAdminWrite(t *testing.T) {
	svc, storage := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "test@example.com", "password123", "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	session, err := svc.OpenSession(ctx, "test@example.com")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer svc.CloseAllSessions(ctx)

	tx, err := svc.DepositFunds(ctx, session, 100, "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, err := svc.ApproveTransaction(ctx, user.ID, tx.ID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Имитация конкурентной записи: версия в хранилище уходит вперед,
	// операция обязана перечитать свежую версию и примениться
	tx2, err := svc.DepositFunds(ctx, session, 50, "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	storage.setVersion("test@example.com", 1000)

	if _, err := svc.ApproveTransaction(ctx, user.ID, tx2.ID); err != nil {
		t.Fatalf("Expected approval against fresh version, got %v", err)
	}
}

func TestCloseSessionFlushesSnapshot(t *testing.T) {
	svc, storage := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "test@example.com", "password123", ""); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	session, err := svc.OpenSession(ctx, "test@example.com")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, err := svc.DepositFunds(ctx, session, 100, "0xabc"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	svc.CloseSession(ctx, "test@example.com")

	// Финальный снимок с транзакцией должен оказаться в хранилище
	profile, err := storage.GetProfile(ctx, "test@example.com")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	found := false
	for _, tx := range profile.User.Transactions {
		if tx.Type == ledger.TransactionTypeDeposit && tx.Amount == 100 {
			found = true
		}
	}
	if !found {
		t.Fatal("Expected deposit transaction in flushed snapshot")
	}
}

func TestReferralLinkRefreshesReferrerSession(t *testing.T) {
	svc, storage := newTestService()
	ctx := context.Background()

	referrer, err := svc.Register(ctx, "referrer@example.com", "password123", "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Сессия реферера открыта во время регистрации приглашенного
	session, err := svc.OpenSession(ctx, "referrer@example.com")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, err := svc.Register(ctx, "referred@example.com", "password123", referrer.ReferralCode); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Открытая сессия видит нового приглашенного
	current, err := svc.CurrentUser(session)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(current.ReferralsList) != 1 || current.ReferralsList[0].Email != "referred@example.com" {
		t.Fatal("Expected referred user in open session's list")
	}
	if current.ReferralCount != 1 {
		t.Fatalf("Expected referral count 1, got %d", current.ReferralCount)
	}

	// Последующий сброс снимка сессии не затирает запись в хранилище
	session.SyncPush(ctx)

	profile, err := storage.GetProfile(ctx, "referrer@example.com")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(profile.User.ReferralsList) != 1 {
		t.Fatal("Expected referral entry to survive session sync push")
	}
}

func TestIdleSessionIsClosed(t *testing.T) {
	storage := NewMockStorage()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	cfg := testConfig()
	cfg.Scheduler.IdleCheckInterval = 10 * time.Millisecond
	cfg.Scheduler.SessionIdleTimeout = 50 * time.Millisecond

	svc := NewPlatformService(storage, nil, nil, cfg, logger)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "test@example.com", "password123", ""); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := svc.OpenSession(ctx, "test@example.com"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer svc.CloseAllSessions(ctx)

	// Без запросов сессия закрывается по таймауту простоя
	deadline := time.Now().Add(2 * time.Second)
	for svc.lookupSession("test@example.com") != nil && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if svc.lookupSession("test@example.com") != nil {
		t.Fatal("Expected idle session to be closed")
	}

	// Следующий запрос открывает сессию заново
	if _, err := svc.GetSession(ctx, "test@example.com"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
}
