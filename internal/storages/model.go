package storages

import (
	"time"

	"minecloud-platform/internal/ledger"
)

// Profile запись хранилища: полный агрегат пользователя плюс метаданные
// документа. Version монотонно растет при каждой записи и служит токеном
// для версионированных (CAS) обновлений.
type Profile struct {
	Email     string       `db:"email"`
	User      *ledger.User `db:"data"`
	Version   int64        `db:"version"`
	CreatedAt time.Time    `db:"created_at"`
	UpdatedAt time.Time    `db:"updated_at"`
}
