package service

import (
	"context"
	"fmt"
	"time"

	"minecloud-platform/internal/ledger"
	"minecloud-platform/internal/storages"
)

// PendingTransaction транзакция в очереди на модерацию вместе с владельцем
type PendingTransaction struct {
	UserID string             `json:"userId"`
	Email  string             `json:"email"`
	Tx     ledger.Transaction `json:"transaction"`
}

// ListUsers возвращает все профили платформы для административной панели
func (svc *PlatformService) ListUsers(ctx context.Context) ([]*ledger.User, error) {
	profiles, err := svc.storage.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	users := make([]*ledger.User, 0, len(profiles))
	for _, p := range profiles {
		users = append(users, presentable(p.User))
	}
	return users, nil
}

// ListPendingTransactions возвращает все незавершенные депозиты и выводы
// по всем пользователям
func (svc *PlatformService) ListPendingTransactions(ctx context.Context) ([]PendingTransaction, error) {
	profiles, err := svc.storage.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	pending := make([]PendingTransaction, 0)
	for _, p := range profiles {
		for _, tx := range p.User.Transactions {
			if tx.Status == ledger.TransactionStatusPending {
				pending = append(pending, PendingTransaction{
					UserID: p.User.ID,
					Email:  p.Email,
					Tx:     tx,
				})
			}
		}
	}
	return pending, nil
}

// ApproveTransaction подтверждает pending-транзакцию пользователя
func (svc *PlatformService) ApproveTransaction(ctx context.Context, userID, txID string) (*ledger.Transaction, error) {
	return svc.resolveTransaction(ctx, userID, txID, true)
}

// RejectTransaction отклоняет pending-транзакцию пользователя. Средства
// отклоненного вывода возвращаются на баланс.
func (svc *PlatformService) RejectTransaction(ctx context.Context, userID, txID string) (*ledger.Transaction, error) {
	return svc.resolveTransaction(ctx, userID, txID, false)
}

// resolveTransaction применяет вердикт администратора через версионированную
// запись, чтобы не затереть параллельные начисления открытой сессии
func (svc *PlatformService) resolveTransaction(ctx context.Context, userID, txID string, approve bool) (*ledger.Transaction, error) {
	now := time.Now()

	var resolved *ledger.Transaction
	profile, err := svc.updateProfileCAS(ctx,
		func(ctx context.Context) (*storages.Profile, error) {
			return svc.storage.GetProfileByUserID(ctx, userID)
		},
		func(u *ledger.User) error {
			var err error
			resolved, err = u.ResolveTransaction(txID, approve, now)
			return err
		})
	if err != nil {
		return nil, err
	}

	svc.refreshLiveSession(profile)

	verdict := "approved"
	if !approve {
		verdict = "rejected"
	}
	svc.logger.Infof("Transaction %s %s for user %s", txID, verdict, profile.Email)
	return resolved, nil
}

// AdjustBalance вручную корректирует баланс пользователя
func (svc *PlatformService) AdjustBalance(ctx context.Context, email string, delta float64) (*ledger.User, error) {
	now := time.Now()

	profile, err := svc.updateProfileCAS(ctx,
		func(ctx context.Context) (*storages.Profile, error) {
			return svc.storage.GetProfile(ctx, email)
		},
		func(u *ledger.User) error {
			u.AdjustBalance(delta, now)
			return nil
		})
	if err != nil {
		return nil, err
	}

	svc.refreshLiveSession(profile)
	svc.logger.Infof("Balance adjusted for %s: %+.2f", email, delta)
	return presentable(profile.User), nil
}
