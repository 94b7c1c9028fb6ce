package ledger

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

func testUser(balance float64) *User {
	u := NewUser("user@example.com", "hash", "MINE-1234", time.Now())
	u.Balance = balance
	return u
}

func TestDepositPending(t *testing.T) {
	now := time.Now()
	u := testUser(0)

	tx, err := u.Deposit(50, "0xabc", 10, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if tx.Status != TransactionStatusPending {
		t.Fatalf("Expected PENDING, got %s", tx.Status)
	}
	// Баланс не меняется до подтверждения администратором
	if u.Balance != 0 {
		t.Fatalf("Expected balance 0, got %f", u.Balance)
	}
}

func TestDepositBelowMinimum(t *testing.T) {
	u := testUser(0)

	_, err := u.Deposit(5, "", 10, time.Now())
	if !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("Expected ErrBelowMinimum, got %v", err)
	}
	if len(u.Transactions) != 0 {
		t.Fatal("Rejected deposit must not create a transaction")
	}
}

func TestWithdrawGrossDebitAndFee(t *testing.T) {
	now := time.Now()
	u := testUser(100)

	tx, err := u.Withdraw(50, "TRX-addr", 10, 3, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Дебетуется полная сумма, комиссия фиксируется на транзакции
	if u.Balance != 50 {
		t.Fatalf("Expected balance 50, got %f", u.Balance)
	}
	if math.Abs(tx.FeeAmount-1.5) > epsilon {
		t.Fatalf("Expected fee 1.5, got %f", tx.FeeAmount)
	}
	if math.Abs(tx.NetAmount-48.5) > epsilon {
		t.Fatalf("Expected net 48.5, got %f", tx.NetAmount)
	}
	if tx.Status != TransactionStatusPending {
		t.Fatalf("Expected PENDING, got %s", tx.Status)
	}
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	u := testUser(20)

	_, err := u.Withdraw(50, "TRX-addr", 10, 3, time.Now())
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}
	if u.Balance != 20 {
		t.Fatalf("Rejected withdrawal must not change balance, got %f", u.Balance)
	}
}

func TestPurchaseDevice(t *testing.T) {
	now := time.Now()
	u := testUser(100)
	def := testDefinition()

	device, err := u.PurchaseDevice(def, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if u.Balance != 60 {
		t.Fatalf("Expected balance 60, got %f", u.Balance)
	}
	if device.Status != DeviceStatusIdle {
		t.Fatalf("Expected purchased device IDLE, got %s", device.Status)
	}
	if u.PurchaseCount() != 1 {
		t.Fatalf("Expected purchase count 1, got %d", u.PurchaseCount())
	}
}

func TestPurchaseDeviceInsufficientFunds(t *testing.T) {
	u := testUser(10)

	_, err := u.PurchaseDevice(testDefinition(), time.Now())
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}
	// Никаких частичных эффектов
	if u.Balance != 10 || len(u.Devices) != 0 || len(u.Transactions) != 0 {
		t.Fatal("Failed purchase must not have partial effects")
	}
}

func TestClaimWelcomeGiftOnce(t *testing.T) {
	now := time.Now()
	u := testUser(0)

	gift, err := u.ClaimWelcomeGift(5, 24, 100, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if gift.Status != DeviceStatusRunning {
		t.Fatalf("Expected gift RUNNING, got %s", gift.Status)
	}

	// Повторный вызов отклоняется
	_, err = u.ClaimWelcomeGift(5, 24, 100, now)
	if !errors.Is(err, ErrGiftAlreadyClaimed) {
		t.Fatalf("Expected ErrGiftAlreadyClaimed, got %v", err)
	}
	if len(u.Devices) != 1 {
		t.Fatalf("Expected single gift device, got %d", len(u.Devices))
	}
}

func TestApproveDepositCreditsBalance(t *testing.T) {
	now := time.Now()
	u := testUser(0)

	tx, err := u.Deposit(50, "", 10, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	resolved, err := u.ResolveTransaction(tx.ID, true, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if resolved.Status != TransactionStatusCompleted {
		t.Fatalf("Expected COMPLETED, got %s", resolved.Status)
	}
	if u.Balance != 50 || u.TotalDeposits != 50 {
		t.Fatalf("Expected balance and total deposits 50, got %f / %f", u.Balance, u.TotalDeposits)
	}
}

func TestRejectWithdrawalRefunds(t *testing.T) {
	now := time.Now()
	u := testUser(100)

	tx, err := u.Withdraw(50, "TRX-addr", 10, 3, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	resolved, err := u.ResolveTransaction(tx.ID, false, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if resolved.Status != TransactionStatusRejected {
		t.Fatalf("Expected REJECTED, got %s", resolved.Status)
	}
	// Списанная сумма возвращается целиком
	if u.Balance != 100 {
		t.Fatalf("Expected balance 100 after refund, got %f", u.Balance)
	}
}

func TestResolveTransactionNotPending(t *testing.T) {
	now := time.Now()
	u := testUser(0)

	tx, _ := u.Deposit(50, "", 10, now)
	if _, err := u.ResolveTransaction(tx.ID, true, now); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Повторное решение по той же транзакции отклоняется
	if _, err := u.ResolveTransaction(tx.ID, true, now); !errors.Is(err, ErrTransactionNotPending) {
		t.Fatalf("Expected ErrTransactionNotPending, got %v", err)
	}
}

func TestResolveTransactionNotFound(t *testing.T) {
	u := testUser(0)

	_, err := u.ResolveTransaction("TX-MISSING", true, time.Now())
	if !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("Expected ErrTransactionNotFound, got %v", err)
	}
}

func TestAccrueAllAggregates(t *testing.T) {
	now := time.Now()
	u := testUser(100)
	def := testDefinition()

	d1, _ := u.PurchaseDevice(def, now)
	d2, _ := u.PurchaseDevice(def, now)
	mustActivate(t, u, d1.InstanceID, now)
	mustActivate(t, u, d2.InstanceID, now)

	balanceBefore := u.Balance
	result := u.AccrueAll(now.Add(12 * time.Hour))

	// Два устройства по $0.50 за 12 часов
	if math.Abs(result.Profit-1.0) > epsilon {
		t.Fatalf("Expected aggregate profit 1.0, got %f", result.Profit)
	}
	if math.Abs(u.Balance-(balanceBefore+1.0)) > epsilon {
		t.Fatalf("Expected single aggregate balance update, got %f", u.Balance)
	}
	if math.Abs(u.TotalEarnings-1.0) > epsilon {
		t.Fatalf("Expected total earnings 1.0, got %f", u.TotalEarnings)
	}
}

// mustActivate активирует устройство стандартным пресетом
func mustActivate(t *testing.T, u *User, instanceID string, now time.Time) {
	t.Helper()
	if _, err := u.ActivateCycle(instanceID, 3, 2.5, now); err != nil {
		t.Fatalf("Failed to activate device: %v", err)
	}
}

func TestAccrueAllCompletionNotifiedOnce(t *testing.T) {
	now := time.Now()
	u := testUser(100)

	device, _ := u.PurchaseDevice(testDefinition(), now)
	mustActivate(t, u, device.InstanceID, now)
	u.ClearNotifications()

	// Тик за границей цикла завершает устройство
	result := u.AccrueAll(now.Add(5 * 24 * time.Hour))
	if len(result.Completed) != 1 {
		t.Fatalf("Expected one completed device, got %d", len(result.Completed))
	}

	completionCount := 0
	for _, n := range u.Notifications {
		if n.Title == "Cycle complete" {
			completionCount++
		}
	}
	if completionCount != 1 {
		t.Fatalf("Expected exactly one completion notification, got %d", completionCount)
	}

	// Последующие тики не создают новых уведомлений о завершении
	result = u.AccrueAll(now.Add(6 * 24 * time.Hour))
	if len(result.Completed) != 0 || result.Profit != 0 {
		t.Fatal("Completed device must not accrue or complete again")
	}
}

func TestNotificationRingBuffer(t *testing.T) {
	now := time.Now()
	u := testUser(0)

	for i := 0; i < MaxNotifications+5; i++ {
		u.AddNotification(fmt.Sprintf("Event %d", i), "message", NotificationTypeInfo, now)
	}

	if len(u.Notifications) != MaxNotifications {
		t.Fatalf("Expected %d notifications, got %d", MaxNotifications, len(u.Notifications))
	}
	// Новые в начале, старейшие отброшены
	if u.Notifications[0].Title != fmt.Sprintf("Event %d", MaxNotifications+4) {
		t.Fatalf("Expected newest notification first, got %s", u.Notifications[0].Title)
	}
}

func TestGrantReferralBonus(t *testing.T) {
	now := time.Now()
	u := testUser(0)
	u.ReferralsList = []ReferralEntry{{Email: "friend@example.com", JoinedAt: now}}

	tx := u.GrantReferralBonus(2.0, "friend@example.com", now)

	if u.Balance != 2.0 || u.ReferralEarnings != 2.0 {
		t.Fatalf("Expected bonus credited, balance=%f earnings=%f", u.Balance, u.ReferralEarnings)
	}
	if tx.Type != TransactionTypeReferralBonus || tx.Status != TransactionStatusCompleted {
		t.Fatalf("Unexpected bonus transaction: %s %s", tx.Type, tx.Status)
	}
	if !u.ReferralsList[0].HasPurchased {
		t.Fatal("Referral entry must be marked as purchased")
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	u := testUser(100)
	device, _ := u.PurchaseDevice(testDefinition(), now)

	clone, err := u.Clone()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Мутация клона не трогает оригинал
	clone.Balance = 0
	clone.Devices[0].Name = "mutated"

	if u.Balance != 60 {
		t.Fatalf("Original balance mutated: %f", u.Balance)
	}
	if device.Name == "mutated" {
		t.Fatal("Original device mutated through clone")
	}
}

func TestExportOmitsPasswordHash(t *testing.T) {
	u := testUser(100)

	export, err := u.Export()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	data, err := base64.StdEncoding.DecodeString(export)
	if err != nil {
		t.Fatalf("Expected valid base64, got %v", err)
	}

	var decoded User
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Expected valid JSON payload, got %v", err)
	}

	if decoded.PasswordHash != "" {
		t.Fatal("Expected password hash to be omitted from export")
	}
	if decoded.Email != u.Email {
		t.Fatalf("Expected email %s, got %s", u.Email, decoded.Email)
	}

	// Агрегат в памяти хеш не теряет
	if u.PasswordHash != "hash" {
		t.Fatal("Expected original aggregate to keep its password hash")
	}
}

func TestFullLifecycleScenario(t *testing.T) {
	now := time.Now()
	u := testUser(0)

	// Депозит $100 и подтверждение администратором
	tx, err := u.Deposit(100, "0xdeadbeef", 10, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := u.ResolveTransaction(tx.ID, true, now); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Покупка устройства за $40 и активация 3-дневного цикла
	device, err := u.PurchaseDevice(testDefinition(), now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := u.ActivateCycle(device.InstanceID, 3, 2.5, now); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Полный цикл: 3 дня по $1.00 в день
	result := u.AccrueAll(now.Add(3 * 24 * time.Hour))
	if len(result.Completed) != 1 {
		t.Fatalf("Expected cycle completion, got %d", len(result.Completed))
	}

	expected := 100.0 - 40.0 + 3.0
	if math.Abs(u.Balance-expected) > epsilon {
		t.Fatalf("Expected final balance %f, got %f", expected, u.Balance)
	}
}
