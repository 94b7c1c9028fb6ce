package ledger

import (
	"time"

	"github.com/google/uuid"
)

// DeviceStatus статус экземпляра устройства
type DeviceStatus string

// Статусы устройства
const (
	DeviceStatusIdle      DeviceStatus = "IDLE"
	DeviceStatusRunning   DeviceStatus = "RUNNING"
	DeviceStatusCompleted DeviceStatus = "COMPLETED"
)

// TransactionType тип транзакции
type TransactionType string

// Типы транзакций
const (
	TransactionTypeDeposit       TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal    TransactionType = "WITHDRAWAL"
	TransactionTypeEarning       TransactionType = "EARNING"
	TransactionTypePurchase      TransactionType = "PURCHASE"
	TransactionTypeUpgrade       TransactionType = "UPGRADE"
	TransactionTypeReferralBonus TransactionType = "REFERRAL_BONUS"
)

// TransactionStatus статус транзакции
type TransactionStatus string

// Статусы транзакций. Статус, покинувший PENDING, терминален.
const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusRejected  TransactionStatus = "REJECTED"
)

// NotificationType тип уведомления
type NotificationType string

// Типы уведомлений
const (
	NotificationTypeInfo     NotificationType = "INFO"
	NotificationTypeSuccess  NotificationType = "SUCCESS"
	NotificationTypeWarning  NotificationType = "WARNING"
	NotificationTypeSecurity NotificationType = "SECURITY"
	NotificationTypeProfit   NotificationType = "PROFIT"
)

// Роли пользователей
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Currency валюта всех операций платформы
const Currency = "USDT"

// MaxNotifications емкость кольцевого буфера уведомлений
const MaxNotifications = 20

// OwnedDevice экземпляр устройства, принадлежащий пользователю.
// Цена фиксируется на момент покупки, чтобы последующие изменения каталога
// не влияли на экономику уже купленных устройств.
type OwnedDevice struct {
	InstanceID             string       `json:"instanceId"`
	DefinitionID           string       `json:"definitionId"`
	Name                   string       `json:"name"`
	PriceAtPurchase        float64      `json:"priceAtPurchase"`
	Status                 DeviceStatus `json:"status"`
	PurchasedAt            time.Time    `json:"purchasedAt"`
	ActivatedAt            *time.Time   `json:"activatedAt,omitempty"`
	ExpiresAt              *time.Time   `json:"expiresAt,omitempty"`
	LastAccrualAt          *time.Time   `json:"lastAccrualAt,omitempty"`
	ActiveDurationDays     int          `json:"activeDurationDays,omitempty"`
	ActiveDailyRatePercent float64      `json:"activeDailyRatePercent,omitempty"`
	DailyProfitEstimate    float64      `json:"dailyProfitEstimate"`
	Hashrate               string       `json:"hashrate,omitempty"`
	Icon                   string       `json:"icon,omitempty"`
}

// Transaction запись о финансовой операции
type Transaction struct {
	ID        string            `json:"id"`
	Amount    float64           `json:"amount"`
	Type      TransactionType   `json:"type"`
	Status    TransactionStatus `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
	Currency  string            `json:"currency"`
	Address   string            `json:"address,omitempty"`
	TxHash    string            `json:"txHash,omitempty"`
	// Для выводов: комиссия учитывается явно. Дебетуется полная сумма,
	// к выплате идет NetAmount = Amount - FeeAmount.
	FeeAmount float64 `json:"feeAmount,omitempty"`
	NetAmount float64 `json:"netAmount,omitempty"`
}

// AppNotification уведомление пользователя
type AppNotification struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	CreatedAt time.Time        `json:"createdAt"`
	IsRead    bool             `json:"isRead"`
}

// ReferralEntry запись о приглашенном пользователе
type ReferralEntry struct {
	Email        string    `json:"email"`
	JoinedAt     time.Time `json:"joinedAt"`
	HasPurchased bool      `json:"hasPurchased"`
}

// User агрегат аккаунта пользователя. Хранилище профилей держит его как один
// JSON-документ с ключом по нормализованному email; в памяти агрегатом
// монопольно владеет активная сессия.
type User struct {
	ID                    string            `json:"id"`
	Email                 string            `json:"email"`
	PasswordHash          string            `json:"passwordHash"`
	Role                  string            `json:"role"`
	Balance               float64           `json:"balance"`
	TotalDeposits         float64           `json:"totalDeposits"`
	TotalEarnings         float64           `json:"totalEarnings"`
	ReferralCode          string            `json:"referralCode"`
	ReferredBy            string            `json:"referredBy,omitempty"`
	ReferralsList         []ReferralEntry   `json:"referralsList"`
	ReferralCount         int               `json:"referralCount"`
	ReferralEarnings      float64           `json:"referralEarnings"`
	Devices               []OwnedDevice     `json:"devices"`
	Transactions          []Transaction     `json:"transactions"`
	Notifications         []AppNotification `json:"notifications"`
	HasSeenOnboarding     bool              `json:"hasSeenOnboarding"`
	HasClaimedWelcomeGift bool              `json:"hasClaimedWelcomeGift"`
	HasSavedRecoveryKey   bool              `json:"hasSavedRecoveryKey"`
	LastSeenChatTime      time.Time         `json:"lastSeenChatTime"`
	CreatedAt             time.Time         `json:"createdAt"`
}

// NewUser создает новый аккаунт с нулевыми балансами
func NewUser(email, passwordHash, referralCode string, now time.Time) *User {
	return &User{
		ID:            "USR-" + uuid.NewString(),
		Email:         email,
		PasswordHash:  passwordHash,
		Role:          RoleUser,
		ReferralCode:  referralCode,
		ReferralsList: []ReferralEntry{},
		Devices:       []OwnedDevice{},
		Transactions:  []Transaction{},
		Notifications: []AppNotification{},
		CreatedAt:     now,
	}
}
