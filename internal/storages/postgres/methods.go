package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"minecloud-platform/internal/ledger"
	"minecloud-platform/internal/storages"
)

// CreateProfile создает новый профиль
func (s *PostgresStorage) CreateProfile(ctx context.Context, profile *storages.Profile) error {
	data, err := json.Marshal(profile.User)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	query := `
		INSERT INTO profiles (email, data, version, created_at, updated_at)
		VALUES ($1, $2, 1, $3, $3)
	`

	now := time.Now()
	if _, err := s.db.ExecContext(ctx, query, profile.Email, data, now); err != nil {
		s.logger.Errorf("Failed to create profile: %v", err)
		return fmt.Errorf("failed to create profile: %w", err)
	}

	profile.Version = 1
	profile.CreatedAt = now
	profile.UpdatedAt = now

	s.logger.Infof("Created profile: %s", profile.Email)
	return nil
}

// GetProfile возвращает профиль по нормализованному email
func (s *PostgresStorage) GetProfile(ctx context.Context, email string) (*storages.Profile, error) {
	query := `
		SELECT email, data, version, created_at, updated_at
		FROM profiles
		WHERE email = $1
	`

	return s.scanProfile(s.db.QueryRowContext(ctx, query, email))
}

// GetProfileByUserID возвращает профиль по ID пользователя внутри документа
func (s *PostgresStorage) GetProfileByUserID(ctx context.Context, userID string) (*storages.Profile, error) {
	query := `
		SELECT email, data, version, created_at, updated_at
		FROM profiles
		WHERE data->>'id' = $1
	`

	return s.scanProfile(s.db.QueryRowContext(ctx, query, userID))
}

// GetProfileByReferralCode возвращает профиль по реферальному коду
func (s *PostgresStorage) GetProfileByReferralCode(ctx context.Context, code string) (*storages.Profile, error) {
	query := `
		SELECT email, data, version, created_at, updated_at
		FROM profiles
		WHERE data->>'referralCode' = $1
	`

	return s.scanProfile(s.db.QueryRowContext(ctx, query, code))
}

// ListProfiles возвращает все профили (административная операция)
func (s *PostgresStorage) ListProfiles(ctx context.Context) ([]storages.Profile, error) {
	query := `
		SELECT email, data, version, created_at, updated_at
		FROM profiles
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.logger.Errorf("Failed to list profiles: %v", err)
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []storages.Profile
	for rows.Next() {
		var profile storages.Profile
		var data []byte

		if err := rows.Scan(&profile.Email, &data, &profile.Version, &profile.CreatedAt, &profile.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}

		var user ledger.User
		if err := json.Unmarshal(data, &user); err != nil {
			return nil, fmt.Errorf("failed to unmarshal profile data: %w", err)
		}
		profile.User = &user

		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}

	return profiles, nil
}

// EmailExists проверяет наличие профиля с указанным email
func (s *PostgresStorage) EmailExists(ctx context.Context, email string) (bool, error) {
	query := `SELECT 1 FROM profiles WHERE email = $1`

	var one int
	err := s.db.QueryRowContext(ctx, query, email).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		s.logger.Errorf("Failed to check email: %v", err)
		return false, fmt.Errorf("failed to check email: %w", err)
	}

	return true, nil
}

// UpsertProfile пишет документ целиком, last-write-wins. Версия документа
// инкрементируется при каждой записи.
func (s *PostgresStorage) UpsertProfile(ctx context.Context, profile *storages.Profile) error {
	data, err := json.Marshal(profile.User)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	query := `
		INSERT INTO profiles (email, data, version, created_at, updated_at)
		VALUES ($1, $2, 1, $3, $3)
		ON CONFLICT (email) DO UPDATE
		SET data = EXCLUDED.data,
		    version = profiles.version + 1,
		    updated_at = EXCLUDED.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, profile.Email, data, time.Now()); err != nil {
		s.logger.Errorf("Failed to upsert profile: %v", err)
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	return nil
}

// UpdateProfileCAS выполняет версионированную запись: документ обновляется
// только если версия в хранилище совпадает с expectedVersion
func (s *PostgresStorage) UpdateProfileCAS(ctx context.Context, profile *storages.Profile, expectedVersion int64) error {
	data, err := json.Marshal(profile.User)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	query := `
		UPDATE profiles
		SET data = $1, version = version + 1, updated_at = $2
		WHERE email = $3 AND version = $4
	`

	result, err := s.db.ExecContext(ctx, query, data, time.Now(), profile.Email, expectedVersion)
	if err != nil {
		s.logger.Errorf("Failed to update profile: %v", err)
		return fmt.Errorf("failed to update profile: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return storages.ErrVersionConflict
	}

	profile.Version = expectedVersion + 1
	return nil
}

// scanProfile читает одну строку профиля
func (s *PostgresStorage) scanProfile(row *sql.Row) (*storages.Profile, error) {
	var profile storages.Profile
	var data []byte

	err := row.Scan(&profile.Email, &data, &profile.Version, &profile.CreatedAt, &profile.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storages.ErrProfileNotFound
	}
	if err != nil {
		s.logger.Errorf("Failed to get profile: %v", err)
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	var user ledger.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile data: %w", err)
	}
	profile.User = &user

	return &profile, nil
}
