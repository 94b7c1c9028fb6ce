package pkg

import (
	"fmt"
	"math/rand"
	"strings"
)

// NormalizeEmail приводит email к нижнему регистру и убирает пробелы.
// Email является ключом профиля в хранилище, поэтому нормализация обязательна
// для всех операций чтения и записи.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail проверяет минимальную корректность email
func ValidateEmail(email string) error {
	email = NormalizeEmail(email)
	if len(email) < 5 || !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// ValidateAmount проверяет, что сумма положительная
func ValidateAmount(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}

// GenerateReferralCode генерирует реферальный код вида MINE-XXXX
func GenerateReferralCode() string {
	return fmt.Sprintf("MINE-%04d", 1000+rand.Intn(9000))
}
