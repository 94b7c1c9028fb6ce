package ledger

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"minecloud-platform/internal/catalog"
)

// Методы этого файла мутируют агрегат User в памяти. Все они синхронные и не
// выполняют I/O; вызывающая сторона обязана держать блокировку сессии и сама
// отвечает за последующую запись агрегата в хранилище профилей.

// Deposit регистрирует запрос на пополнение. Баланс не меняется до
// подтверждения администратором.
func (u *User) Deposit(amount float64, txHash string, minDeposit float64, now time.Time) (*Transaction, error) {
	if amount < minDeposit {
		return nil, fmt.Errorf("%w: minimum deposit is %.2f %s", ErrBelowMinimum, minDeposit, Currency)
	}

	tx := Transaction{
		ID:        "TX-DEP-" + uuid.NewString(),
		Amount:    amount,
		Type:      TransactionTypeDeposit,
		Status:    TransactionStatusPending,
		CreatedAt: now,
		Currency:  Currency,
		TxHash:    txHash,
	}
	u.Transactions = append([]Transaction{tx}, u.Transactions...)

	u.AddNotification("Deposit requested",
		fmt.Sprintf("Deposit of %.2f %s is awaiting network confirmation.", amount, Currency),
		NotificationTypeInfo, now)

	return &u.Transactions[0], nil
}

// Withdraw регистрирует запрос на вывод средств. Дебетуется полная (gross)
// сумма сразу; комиссия фиксируется на самой транзакции, к выплате идет
// NetAmount. Транзакция остается PENDING до решения администратора.
func (u *User) Withdraw(amount float64, address string, minWithdrawal, feePercent float64, now time.Time) (*Transaction, error) {
	if amount < minWithdrawal {
		return nil, fmt.Errorf("%w: minimum withdrawal is %.2f %s", ErrBelowMinimum, minWithdrawal, Currency)
	}
	if amount > u.Balance {
		return nil, ErrInsufficientFunds
	}

	fee := amount * feePercent / 100
	tx := Transaction{
		ID:        "TX-WDR-" + uuid.NewString(),
		Amount:    amount,
		Type:      TransactionTypeWithdrawal,
		Status:    TransactionStatusPending,
		CreatedAt: now,
		Currency:  Currency,
		Address:   address,
		FeeAmount: fee,
		NetAmount: amount - fee,
	}

	u.Balance -= amount
	u.Transactions = append([]Transaction{tx}, u.Transactions...)

	u.AddNotification("Withdrawal requested",
		fmt.Sprintf("Withdrawal request for %.2f %s received, payout %.2f %s after fee.",
			amount, Currency, tx.NetAmount, Currency),
		NotificationTypeInfo, now)

	return &u.Transactions[0], nil
}

// PurchaseDevice покупает устройство из каталога. При нехватке средств
// операция не имеет частичных эффектов.
func (u *User) PurchaseDevice(def *catalog.Definition, now time.Time) (*OwnedDevice, error) {
	if u.Balance < def.Price {
		return nil, ErrInsufficientFunds
	}

	device := NewDevice(def, now)
	u.Balance -= def.Price
	u.Devices = append([]OwnedDevice{device}, u.Devices...)

	tx := Transaction{
		ID:        "TX-PUR-" + uuid.NewString(),
		Amount:    def.Price,
		Type:      TransactionTypePurchase,
		Status:    TransactionStatusCompleted,
		CreatedAt: now,
		Currency:  Currency,
	}
	u.Transactions = append([]Transaction{tx}, u.Transactions...)

	u.AddNotification("Purchase complete",
		fmt.Sprintf("You now own %s.", def.Name),
		NotificationTypeSuccess, now)

	return &u.Devices[0], nil
}

// ClaimWelcomeGift выдает одноразовый приветственный подарок:
// предактивированное устройство. Повторный вызов отклоняется.
func (u *User) ClaimWelcomeGift(price float64, hours int, dailyRatePercent float64, now time.Time) (*OwnedDevice, error) {
	if u.HasClaimedWelcomeGift {
		return nil, ErrGiftAlreadyClaimed
	}

	gift := NewGiftDevice(price, hours, dailyRatePercent, now)
	u.HasClaimedWelcomeGift = true
	u.Devices = append([]OwnedDevice{gift}, u.Devices...)

	u.AddNotification("Welcome gift!",
		fmt.Sprintf("Your %.0f$ trial device is already mining.", price),
		NotificationTypeProfit, now)

	return &u.Devices[0], nil
}

// ActivateCycle запускает цикл добычи для устройства по его instanceId
func (u *User) ActivateCycle(instanceID string, durationDays int, dailyRatePercent float64, now time.Time) (*OwnedDevice, error) {
	device := u.FindDevice(instanceID)
	if device == nil {
		return nil, ErrDeviceNotFound
	}

	if err := device.Activate(durationDays, dailyRatePercent, now); err != nil {
		return nil, err
	}

	u.AddNotification("Mining started",
		fmt.Sprintf("%d-day cycle activated for %s.", durationDays, device.Name),
		NotificationTypeSuccess, now)

	return device, nil
}

// FindDevice возвращает устройство по instanceId или nil
func (u *User) FindDevice(instanceID string) *OwnedDevice {
	for i := range u.Devices {
		if u.Devices[i].InstanceID == instanceID {
			return &u.Devices[i]
		}
	}
	return nil
}

// AccrualResult результат одного тика начисления по всем устройствам
type AccrualResult struct {
	Profit    float64
	Completed []OwnedDevice
}

// AccrueAll выполняет один тик начисления: прибыль всех работающих устройств
// агрегируется в одно обновление баланса, на каждое завершившееся устройство
// создается ровно одно уведомление.
func (u *User) AccrueAll(now time.Time) AccrualResult {
	var result AccrualResult

	for i := range u.Devices {
		profit, completed := u.Devices[i].Accrue(now)
		result.Profit += profit
		if completed {
			result.Completed = append(result.Completed, u.Devices[i])
			u.AddNotification("Cycle complete",
				fmt.Sprintf("Mining cycle finished for %s.", u.Devices[i].Name),
				NotificationTypeInfo, now)
		}
	}

	if result.Profit > 0 {
		u.Balance += result.Profit
		u.TotalEarnings += result.Profit
	}

	return result
}

// ResolveTransaction выполняет решение администратора по PENDING-транзакции.
// Подтверждение депозита зачисляет сумму на баланс; отклонение вывода
// возвращает списанную сумму. Вызывается против загруженного из хранилища
// агрегата целевого пользователя, не против агрегата сессии администратора.
func (u *User) ResolveTransaction(txID string, approve bool, now time.Time) (*Transaction, error) {
	for i := range u.Transactions {
		tx := &u.Transactions[i]
		if tx.ID != txID {
			continue
		}
		if tx.Status != TransactionStatusPending {
			return nil, ErrTransactionNotPending
		}

		if approve {
			tx.Status = TransactionStatusCompleted
			if tx.Type == TransactionTypeDeposit {
				u.Balance += tx.Amount
				u.TotalDeposits += tx.Amount
				u.AddNotification("Deposit confirmed",
					fmt.Sprintf("%.2f %s has been credited to your balance.", tx.Amount, Currency),
					NotificationTypeSuccess, now)
			}
		} else {
			tx.Status = TransactionStatusRejected
			if tx.Type == TransactionTypeWithdrawal {
				u.Balance += tx.Amount
				u.AddNotification("Withdrawal rejected",
					fmt.Sprintf("Withdrawal of %.2f %s was rejected, funds returned.", tx.Amount, Currency),
					NotificationTypeWarning, now)
			}
		}

		return tx, nil
	}

	return nil, ErrTransactionNotFound
}

// GrantReferralBonus зачисляет рефереру комиссию за первую покупку
// приглашенного пользователя
func (u *User) GrantReferralBonus(amount float64, referredEmail string, now time.Time) *Transaction {
	tx := Transaction{
		ID:        "TX-REF-" + uuid.NewString(),
		Amount:    amount,
		Type:      TransactionTypeReferralBonus,
		Status:    TransactionStatusCompleted,
		CreatedAt: now,
		Currency:  Currency,
	}

	u.Balance += amount
	u.ReferralEarnings += amount
	u.Transactions = append([]Transaction{tx}, u.Transactions...)

	for i := range u.ReferralsList {
		if u.ReferralsList[i].Email == referredEmail {
			u.ReferralsList[i].HasPurchased = true
		}
	}

	u.AddNotification("Referral bonus",
		fmt.Sprintf("You earned %.2f %s from a referral's first purchase.", amount, Currency),
		NotificationTypeProfit, now)

	return &u.Transactions[0]
}

// AdjustBalance прямое изменение баланса администратором
func (u *User) AdjustBalance(delta float64, now time.Time) {
	u.Balance += delta

	verb := "credited to"
	if delta < 0 {
		verb = "debited from"
	}
	u.AddNotification("Balance adjustment",
		fmt.Sprintf("%.2f %s was %s your account by the administrator.", abs(delta), Currency, verb),
		NotificationTypeSecurity, now)
}

// AddNotification добавляет уведомление в кольцевой буфер: новые в начале,
// при переполнении старейшие молча отбрасываются
func (u *User) AddNotification(title, message string, typ NotificationType, now time.Time) {
	notif := AppNotification{
		ID:        "NOT-" + uuid.NewString(),
		Title:     title,
		Message:   message,
		Type:      typ,
		CreatedAt: now,
	}

	u.Notifications = append([]AppNotification{notif}, u.Notifications...)
	if len(u.Notifications) > MaxNotifications {
		u.Notifications = u.Notifications[:MaxNotifications]
	}
}

// MarkNotificationsRead помечает все уведомления прочитанными
func (u *User) MarkNotificationsRead() {
	for i := range u.Notifications {
		u.Notifications[i].IsRead = true
	}
}

// ClearNotifications очищает список уведомлений
func (u *User) ClearNotifications() {
	u.Notifications = []AppNotification{}
}

// MarkChatRead обновляет отметку последнего просмотра чата
func (u *User) MarkChatRead(now time.Time) {
	u.LastSeenChatTime = now
}

// CompleteOnboarding помечает онбординг пройденным
func (u *User) CompleteOnboarding() {
	u.HasSeenOnboarding = true
}

// ConfirmRecoveryKeySaved помечает ключ восстановления сохраненным
func (u *User) ConfirmRecoveryKeySaved() {
	u.HasSavedRecoveryKey = true
}

// PurchaseCount возвращает количество покупок устройств
func (u *User) PurchaseCount() int {
	count := 0
	for i := range u.Transactions {
		if u.Transactions[i].Type == TransactionTypePurchase {
			count++
		}
	}
	return count
}

// Export сериализует агрегат в base64 для резервной копии аккаунта.
// Хеш пароля в выгрузку не попадает
func (u *User) Export() (string, error) {
	export := *u
	export.PasswordHash = ""

	data, err := json.Marshal(&export)
	if err != nil {
		return "", fmt.Errorf("failed to export account: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Clone возвращает глубокую копию агрегата через JSON-раунд.
// Используется для снимков состояния перед записью в хранилище.
func (u *User) Clone() (*User, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("failed to clone user: %w", err)
	}
	var clone User
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, fmt.Errorf("failed to clone user: %w", err)
	}
	return &clone, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
