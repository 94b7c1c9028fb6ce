package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"minecloud-platform/internal/catalog"
	"minecloud-platform/internal/chat"
	"minecloud-platform/internal/config"
	"minecloud-platform/internal/kafka"
	"minecloud-platform/internal/ledger"
	"minecloud-platform/internal/scheduler"
	"minecloud-platform/internal/storages"
	"minecloud-platform/pkg"
)

// PlatformService сервисный слой платформы: аутентификация, операции
// пользователя над его леджером, административные операции и чат
type PlatformService struct {
	storage     storages.Storage
	chat        *chat.Store
	producer    *kafka.Producer
	platform    config.PlatformConfig
	intervals   scheduler.Intervals
	idleTimeout time.Duration
	logger      *logrus.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewPlatformService создает новый экземпляр сервиса
func NewPlatformService(
	storage storages.Storage,
	chatStore *chat.Store,
	producer *kafka.Producer,
	cfg *config.Config,
	logger *logrus.Logger,
) *PlatformService {
	return &PlatformService{
		storage:  storage,
		chat:     chatStore,
		producer: producer,
		platform: cfg.Platform,
		intervals: scheduler.Intervals{
			Accrual:   cfg.Scheduler.AccrualInterval,
			Sync:      cfg.Scheduler.SyncInterval,
			Unread:    cfg.Scheduler.UnreadInterval,
			IdleCheck: cfg.Scheduler.IdleCheckInterval,
		},
		idleTimeout: cfg.Scheduler.SessionIdleTimeout,
		logger:      logger,
		sessions:    make(map[string]*Session),
	}
}

// Register регистрирует нового пользователя. Если указан реферальный код,
// аккаунты связываются и приглашенный появляется в списке реферера.
func (svc *PlatformService) Register(ctx context.Context, email, password, referralCode string) (*ledger.User, error) {
	email = pkg.NormalizeEmail(email)
	if err := pkg.ValidateEmail(email); err != nil {
		return nil, err
	}

	// Проверяем, не существует ли уже пользователь
	exists, err := svc.storage.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("email already exists")
	}

	// Хешируем пароль
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		svc.logger.Errorf("Failed to hash password: %v", err)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := ledger.NewUser(email, string(hashedPassword), pkg.GenerateReferralCode(), now)
	user.AddNotification("Welcome!", "Your account has been created.", ledger.NotificationTypeSuccess, now)

	// Связываем с реферером, если код указан
	if referralCode != "" {
		if err := svc.linkReferral(ctx, user, referralCode, now); err != nil {
			// Неверный код не блокирует регистрацию
			svc.logger.Warnf("Referral linking failed for %s: %v", email, err)
		}
	}

	if err := svc.storage.CreateProfile(ctx, &storages.Profile{Email: email, User: user}); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	svc.logger.Infof("User registered successfully: %s", email)
	return presentable(user), nil
}

// linkReferral связывает нового пользователя с реферером и добавляет запись
// в список приглашенных реферера
func (svc *PlatformService) linkReferral(ctx context.Context, user *ledger.User, referralCode string, now time.Time) error {
	referrer, err := svc.storage.GetProfileByReferralCode(ctx, referralCode)
	if err != nil {
		return fmt.Errorf("referral code not found: %w", err)
	}
	if referrer.Email == user.Email {
		return fmt.Errorf("self-referral is not allowed")
	}

	user.ReferredBy = referralCode

	profile, err := svc.updateProfileCAS(ctx,
		func(ctx context.Context) (*storages.Profile, error) {
			return svc.storage.GetProfileByReferralCode(ctx, referralCode)
		},
		func(u *ledger.User) error {
			u.ReferralsList = append(u.ReferralsList, ledger.ReferralEntry{
				Email:    user.Email,
				JoinedAt: now,
			})
			u.ReferralCount = len(u.ReferralsList)
			u.AddNotification("New referral",
				fmt.Sprintf("%s joined using your referral code.", user.Email),
				ledger.NotificationTypeInfo, now)
			return nil
		})
	if err != nil {
		return err
	}

	// Открытая сессия реферера должна увидеть новую запись, иначе ее
	// следующий сброс снимка затрет запись в хранилище
	svc.refreshLiveSession(profile)
	return nil
}

// Authenticate аутентифицирует пользователя по email и паролю
func (svc *PlatformService) Authenticate(ctx context.Context, email, password string) (*ledger.User, error) {
	email = pkg.NormalizeEmail(email)

	profile, err := svc.storage.GetProfile(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("invalid email or password")
	}

	// Проверяем пароль
	if err := bcrypt.CompareHashAndPassword([]byte(profile.User.PasswordHash), []byte(password)); err != nil {
		svc.logger.Warnf("Failed authentication attempt for user: %s", email)
		return nil, fmt.Errorf("invalid email or password")
	}

	svc.logger.Infof("User authenticated successfully: %s", email)
	return presentable(profile.User), nil
}

// ResetPassword устанавливает новый пароль для существующего аккаунта
func (svc *PlatformService) ResetPassword(ctx context.Context, email, newPassword string) error {
	email = pkg.NormalizeEmail(email)

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	profile, err := svc.updateProfileCAS(ctx,
		func(ctx context.Context) (*storages.Profile, error) {
			return svc.storage.GetProfile(ctx, email)
		},
		func(u *ledger.User) error {
			u.PasswordHash = string(hashedPassword)
			u.AddNotification("Password changed",
				"Your password has been updated.",
				ledger.NotificationTypeSecurity, now)
			return nil
		})
	if err != nil {
		return err
	}

	svc.refreshLiveSession(profile)
	svc.logger.Infof("Password reset for user: %s", email)
	return nil
}

// CheckEmailExists проверяет, зарегистрирован ли email
func (svc *PlatformService) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	return svc.storage.EmailExists(ctx, pkg.NormalizeEmail(email))
}

// presentable возвращает копию агрегата без хеша пароля для отдачи клиенту.
// Копия поверхностная: вложенные срезы не мутируются при сериализации ответа.
func presentable(u *ledger.User) *ledger.User {
	c := *u
	c.PasswordHash = ""
	return &c
}

// CurrentUser возвращает копию агрегата сессии для отдачи клиенту
func (svc *PlatformService) CurrentUser(session *Session) (*ledger.User, error) {
	profile, err := session.Snapshot()
	if err != nil {
		return nil, err
	}
	return presentable(profile.User), nil
}

// DepositFunds регистрирует запрос на пополнение. Снимок пишется синхронно:
// pending-транзакция должна быть видна модерации сразу после ответа клиенту.
func (svc *PlatformService) DepositFunds(ctx context.Context, session *Session, amount float64, txHash string) (*ledger.Transaction, error) {
	var tx *ledger.Transaction
	err := session.withUser(func(u *ledger.User) error {
		var err error
		tx, err = u.Deposit(amount, txHash, svc.platform.MinDepositAmount, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}

	session.SyncPush(ctx)
	svc.logger.Infof("Deposit requested: %s, Amount=%.2f", session.Email(), amount)
	return tx, nil
}

// WithdrawFunds регистрирует запрос на вывод средств
func (svc *PlatformService) WithdrawFunds(ctx context.Context, session *Session, amount float64, address string) (*ledger.Transaction, error) {
	var tx *ledger.Transaction
	var userID string
	err := session.withUser(func(u *ledger.User) error {
		var err error
		tx, err = u.Withdraw(amount, address, svc.platform.MinWithdrawalAmount, svc.platform.WithdrawalFeePercent, time.Now())
		userID = u.ID
		return err
	})
	if err != nil {
		return nil, err
	}

	// Отправляем событие в Kafka, если сумма большая
	if svc.producer != nil {
		if err := svc.producer.SendWithdrawalRequested(ctx, userID, session.Email(), tx.Amount, tx.NetAmount, address); err != nil {
			svc.logger.Warnf("Failed to send Kafka event: %v", err)
		}
	}

	session.SyncPush(ctx)
	svc.logger.Infof("Withdrawal requested: %s, Amount=%.2f (net %.2f)", session.Email(), tx.Amount, tx.NetAmount)
	return tx, nil
}

// PurchaseDevice покупает устройство из каталога. Первая покупка приглашенного
// пользователя приносит рефереру бонус.
func (svc *PlatformService) PurchaseDevice(ctx context.Context, session *Session, definitionID string) (*ledger.OwnedDevice, error) {
	def, err := catalog.Find(definitionID)
	if err != nil {
		return nil, err
	}

	var device *ledger.OwnedDevice
	var referredBy string
	var firstPurchase bool
	err = session.withUser(func(u *ledger.User) error {
		var err error
		device, err = u.PurchaseDevice(def, time.Now())
		if err != nil {
			return err
		}
		referredBy = u.ReferredBy
		firstPurchase = u.PurchaseCount() == 1
		return nil
	})
	if err != nil {
		return nil, err
	}

	if referredBy != "" && firstPurchase {
		if err := svc.grantReferralBonus(ctx, referredBy, session.Email(), def.Price); err != nil {
			svc.logger.Warnf("Failed to grant referral bonus: %v", err)
		}
	}

	svc.pushSnapshot(session)
	svc.logger.Infof("Device purchased: %s, %s ($%.2f)", session.Email(), def.Name, def.Price)
	return device, nil
}

// grantReferralBonus начисляет рефереру процент от первой покупки
// приглашенного пользователя
func (svc *PlatformService) grantReferralBonus(ctx context.Context, referralCode, referredEmail string, purchaseAmount float64) error {
	bonus := purchaseAmount * svc.platform.ReferralBonusPercent / 100
	if bonus <= 0 {
		return nil
	}

	now := time.Now()
	profile, err := svc.updateProfileCAS(ctx,
		func(ctx context.Context) (*storages.Profile, error) {
			return svc.storage.GetProfileByReferralCode(ctx, referralCode)
		},
		func(u *ledger.User) error {
			u.GrantReferralBonus(bonus, referredEmail, now)
			return nil
		})
	if err != nil {
		return err
	}

	svc.refreshLiveSession(profile)
	svc.logger.Infof("Referral bonus granted: %.2f to %s", bonus, profile.Email)
	return nil
}

// ClaimWelcomeGift выдает одноразовый приветственный подарок
func (svc *PlatformService) ClaimWelcomeGift(session *Session) (*ledger.OwnedDevice, error) {
	var device *ledger.OwnedDevice
	err := session.withUser(func(u *ledger.User) error {
		var err error
		device, err = u.ClaimWelcomeGift(
			svc.platform.WelcomeGiftPrice,
			svc.platform.WelcomeGiftHours,
			svc.platform.WelcomeGiftDailyRate,
			time.Now(),
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	svc.pushSnapshot(session)
	svc.logger.Infof("Welcome gift claimed: %s", session.Email())
	return device, nil
}

// ActivateCycle запускает цикл добычи для устройства. Пара
// (длительность, ставка) обязана быть одним из разрешенных пресетов.
func (svc *PlatformService) ActivateCycle(session *Session, instanceID string, durationDays int, dailyRatePercent float64) (*ledger.OwnedDevice, error) {
	if !catalog.ValidTier(durationDays, dailyRatePercent) {
		return nil, fmt.Errorf("invalid activation tier: %d days at %.1f%%", durationDays, dailyRatePercent)
	}

	var device *ledger.OwnedDevice
	err := session.withUser(func(u *ledger.User) error {
		var err error
		device, err = u.ActivateCycle(instanceID, durationDays, dailyRatePercent, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}

	svc.pushSnapshot(session)
	return device, nil
}

// MarkNotificationsRead помечает все уведомления прочитанными
func (svc *PlatformService) MarkNotificationsRead(session *Session) {
	_ = session.withUser(func(u *ledger.User) error {
		u.MarkNotificationsRead()
		return nil
	})
	svc.pushSnapshot(session)
}

// ClearNotifications очищает список уведомлений
func (svc *PlatformService) ClearNotifications(session *Session) {
	_ = session.withUser(func(u *ledger.User) error {
		u.ClearNotifications()
		return nil
	})
	svc.pushSnapshot(session)
}

// CompleteOnboarding помечает онбординг пройденным
func (svc *PlatformService) CompleteOnboarding(session *Session) {
	_ = session.withUser(func(u *ledger.User) error {
		u.CompleteOnboarding()
		return nil
	})
	svc.pushSnapshot(session)
}

// ConfirmRecoveryKeySaved помечает ключ восстановления сохраненным
func (svc *PlatformService) ConfirmRecoveryKeySaved(session *Session) {
	_ = session.withUser(func(u *ledger.User) error {
		u.ConfirmRecoveryKeySaved()
		return nil
	})
	svc.pushSnapshot(session)
}

// ExportAccount возвращает base64-снимок аккаунта
func (svc *PlatformService) ExportAccount(session *Session) (string, error) {
	var export string
	err := session.withUser(func(u *ledger.User) error {
		var err error
		export, err = u.Export()
		return err
	})
	return export, err
}

// SendChatMessage отправляет сообщение в общий чат поддержки
func (svc *PlatformService) SendChatMessage(ctx context.Context, session *Session, text string) (*chat.Message, error) {
	if svc.chat == nil {
		return nil, fmt.Errorf("chat is unavailable")
	}

	var role string
	_ = session.withUser(func(u *ledger.User) error {
		role = u.Role
		return nil
	})

	msg := &chat.Message{
		SenderEmail: session.Email(),
		SenderRole:  role,
		Text:        text,
	}
	if err := svc.chat.Insert(ctx, msg); err != nil {
		return nil, err
	}

	return msg, nil
}

// ChatMessages возвращает последние сообщения чата
func (svc *PlatformService) ChatMessages(ctx context.Context, limit int) ([]chat.Message, error) {
	if svc.chat == nil {
		return nil, fmt.Errorf("chat is unavailable")
	}
	return svc.chat.ListRecent(ctx, limit)
}

// MarkChatRead обновляет отметку последнего просмотра чата и сбрасывает
// счетчик непрочитанных
func (svc *PlatformService) MarkChatRead(session *Session) {
	_ = session.withUser(func(u *ledger.User) error {
		u.MarkChatRead(time.Now())
		return nil
	})
	session.unread.Store(0)
	svc.pushSnapshot(session)
}

// updateProfileCAS выполняет мутацию чужого профиля через версионированную
// запись с ограниченным числом повторов при конфликте версий
func (svc *PlatformService) updateProfileCAS(
	ctx context.Context,
	load func(ctx context.Context) (*storages.Profile, error),
	mutate func(u *ledger.User) error,
) (*storages.Profile, error) {
	const maxAttempts = 3

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		profile, err := load(ctx)
		if err != nil {
			return nil, err
		}

		if err := mutate(profile.User); err != nil {
			return nil, err
		}

		err = svc.storage.UpdateProfileCAS(ctx, profile, profile.Version)
		if err == nil {
			return profile, nil
		}
		if !errors.Is(err, storages.ErrVersionConflict) {
			return nil, err
		}

		// Конфликт версий: другой писатель успел раньше, перечитываем
		lastErr = err
		svc.logger.Debugf("Version conflict on %s, retrying (%d/%d)", profile.Email, attempt+1, maxAttempts)
	}

	return nil, fmt.Errorf("profile update failed after retries: %w", lastErr)
}

// refreshLiveSession обновляет агрегат открытой сессии после записи в
// хранилище мимо нее (административные мутации, реферальный бонус)
func (svc *PlatformService) refreshLiveSession(profile *storages.Profile) {
	session := svc.lookupSession(profile.Email)
	if session == nil {
		return
	}

	clone, err := profile.User.Clone()
	if err != nil {
		svc.logger.Warnf("Failed to refresh session %s: %v", profile.Email, err)
		return
	}
	session.replaceUser(clone)
}
