package storages

import (
	"context"
	"errors"
)

// ErrVersionConflict возвращается при неудаче версионированной записи:
// между чтением и записью профиль изменил другой писатель
var ErrVersionConflict = errors.New("profile version conflict")

// ErrProfileNotFound возвращается, когда профиль не найден
var ErrProfileNotFound = errors.New("profile not found")

// Storage определяет контракт хранилища профилей: один JSON-документ на
// пользователя с ключом по нормализованному email
type Storage interface {
	// Profile operations
	CreateProfile(ctx context.Context, profile *Profile) error
	GetProfile(ctx context.Context, email string) (*Profile, error)
	GetProfileByUserID(ctx context.Context, userID string) (*Profile, error)
	GetProfileByReferralCode(ctx context.Context, code string) (*Profile, error)
	ListProfiles(ctx context.Context) ([]Profile, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	// UpsertProfile пишет документ целиком, last-write-wins.
	// Используется сессией-владельцем для периодического сброса снимка.
	UpsertProfile(ctx context.Context, profile *Profile) error

	// UpdateProfileCAS пишет документ только если версия в хранилище равна
	// expectedVersion, иначе возвращает ErrVersionConflict. Используется для
	// административных мутаций чужих профилей.
	UpdateProfileCAS(ctx context.Context, profile *Profile, expectedVersion int64) error

	// Health check
	Ping(ctx context.Context) error
	Close() error
}
