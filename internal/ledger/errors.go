package ledger

import "errors"

// Ошибки валидации операций леджера. Все они локальные и нефатальные:
// вызывающая сторона показывает их пользователю и не повторяет операцию.
var (
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrBelowMinimum           = errors.New("amount is below the minimum")
	ErrDeviceNotFound         = errors.New("device not found")
	ErrDeviceAlreadyRunning   = errors.New("device is already running")
	ErrGiftAlreadyClaimed     = errors.New("welcome gift already claimed")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrTransactionNotPending  = errors.New("transaction is not pending")
	ErrInvalidActivation      = errors.New("invalid activation parameters")
)
