package ledger

import (
	"time"

	"github.com/google/uuid"

	"minecloud-platform/internal/catalog"
)

// NewDevice создает новый экземпляр устройства по позиции каталога.
// Устройство создается в статусе IDLE; списание баланса остается на
// вызывающей стороне.
func NewDevice(def *catalog.Definition, now time.Time) OwnedDevice {
	return OwnedDevice{
		InstanceID:          "DEV-" + uuid.NewString(),
		DefinitionID:        def.ID,
		Name:                def.Name,
		PriceAtPurchase:     def.Price,
		Status:              DeviceStatusIdle,
		PurchasedAt:         now,
		DailyProfitEstimate: def.Price * def.DailyProfitPercent / 100,
		Hashrate:            def.Hashrate,
		Icon:                def.Icon,
	}
}

// NewGiftDevice создает предактивированное подарочное устройство.
// Ставка подбирается так, чтобы за полный цикл устройство принесло
// ровно свою номинальную стоимость.
func NewGiftDevice(price float64, hours int, dailyRatePercent float64, now time.Time) OwnedDevice {
	expires := now.Add(time.Duration(hours) * time.Hour)
	activated := now
	accrual := now
	return OwnedDevice{
		InstanceID:             "GIFT-" + uuid.NewString(),
		DefinitionID:           "gift-001",
		Name:                   "Turbo S9 Trial",
		PriceAtPurchase:        price,
		Status:                 DeviceStatusRunning,
		PurchasedAt:            now,
		ActivatedAt:            &activated,
		ExpiresAt:              &expires,
		LastAccrualAt:          &accrual,
		ActiveDurationDays:     (hours + 23) / 24,
		ActiveDailyRatePercent: dailyRatePercent,
		DailyProfitEstimate:    price * dailyRatePercent / 100,
		Hashrate:               "14 TH/s",
		Icon:                   "devices/antminer-s9.jpg",
	}
}

// Activate запускает новый цикл добычи.
// Разрешено из IDLE и из COMPLETED (повторная активация); попытка активировать
// уже работающее устройство отклоняется. Сам движок не проверяет, что пара
// (длительность, ставка) соответствует разрешенному пресету: это делает
// сервисный слой.
func (d *OwnedDevice) Activate(durationDays int, dailyRatePercent float64, now time.Time) error {
	if d.Status == DeviceStatusRunning {
		return ErrDeviceAlreadyRunning
	}
	if durationDays <= 0 || dailyRatePercent < 0 {
		return ErrInvalidActivation
	}

	expires := now.Add(time.Duration(durationDays) * 24 * time.Hour)
	activated := now
	accrual := now

	d.Status = DeviceStatusRunning
	d.ActivatedAt = &activated
	d.ExpiresAt = &expires
	d.LastAccrualAt = &accrual
	d.ActiveDurationDays = durationDays
	d.ActiveDailyRatePercent = dailyRatePercent
	d.DailyProfitEstimate = d.PriceAtPurchase * dailyRatePercent / 100

	return nil
}

// Accrue начисляет прибыль за время, прошедшее с прошлого начисления.
// Начисление воспроизводимо: прошедшее время считается от сохраненного
// LastAccrualAt, а не от фиксированного интервала тика, поэтому пропущенные
// тики (например, после простоя процесса) не теряют прибыль. Время
// обрезается по границе цикла: на тике завершения доначисляется остаток
// ровно до ExpiresAt, после чего устройство переходит в COMPLETED.
// Возвращает начисленную прибыль и признак завершения цикла на этом вызове.
func (d *OwnedDevice) Accrue(now time.Time) (float64, bool) {
	if d.Status != DeviceStatusRunning || d.ExpiresAt == nil || d.LastAccrualAt == nil {
		return 0, false
	}

	end := now
	completed := false
	if !now.Before(*d.ExpiresAt) {
		end = *d.ExpiresAt
		completed = true
	}

	elapsed := end.Sub(*d.LastAccrualAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	dailyValue := d.PriceAtPurchase * d.ActiveDailyRatePercent / 100
	profit := elapsed * dailyValue / 86400

	mark := end
	d.LastAccrualAt = &mark
	if completed {
		d.Status = DeviceStatusCompleted
	}

	return profit, completed
}
