package catalog

import (
	"errors"
	"fmt"
)

// Definition описывает одну позицию каталога майнинг-устройств.
// Каталог неизменяемый: определяется при сборке и никогда не мутируется.
type Definition struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Price              float64 `json:"price"`
	DurationDays       int     `json:"durationDays"`
	DailyProfitPercent float64 `json:"dailyProfitPercent"`
	Hashrate           string  `json:"hashrate"`
	Icon               string  `json:"icon"`
}

// Tier описывает разрешенный пресет активации цикла.
// Пользователю доступны ровно два пресета; произвольные пары
// (длительность, ставка) отклоняются на уровне сервиса.
type Tier struct {
	DurationDays     int     `json:"durationDays"`
	DailyRatePercent float64 `json:"dailyRatePercent"`
}

// Tiers список разрешенных пресетов активации
var Tiers = []Tier{
	{DurationDays: 3, DailyRatePercent: 2.0},
	{DurationDays: 7, DailyRatePercent: 2.5},
}

// Devices полный каталог устройств платформы
var Devices = []Definition{
	{
		ID:                 "pkg-1",
		Name:               "Antminer S9 Classic",
		Price:              12,
		DurationDays:       15,
		DailyProfitPercent: 2.5,
		Hashrate:           "14 TH/s",
		Icon:               "devices/antminer-s9.jpg",
	},
	{
		ID:                 "pkg-2",
		Name:               "Whatsminer M30S",
		Price:              40,
		DurationDays:       30,
		DailyProfitPercent: 2.5,
		Hashrate:           "88 TH/s",
		Icon:               "devices/whatsminer-m30s.jpg",
	},
	{
		ID:                 "pkg-3",
		Name:               "GPU Rig RTX 3090",
		Price:              80,
		DurationDays:       45,
		DailyProfitPercent: 2.5,
		Hashrate:           "1.2 GH/s",
		Icon:               "devices/gpu-rig.jpg",
	},
	{
		ID:                 "pkg-4",
		Name:               "Antminer S19 Pro",
		Price:              180,
		DurationDays:       60,
		DailyProfitPercent: 2.5,
		Hashrate:           "110 TH/s",
		Icon:               "devices/antminer-s19.jpg",
	},
	{
		ID:                 "pkg-5",
		Name:               "Mining Farm Unit",
		Price:              300,
		DurationDays:       90,
		DailyProfitPercent: 2.5,
		Hashrate:           "500 TH/s",
		Icon:               "devices/mining-farm.jpg",
	},
	{
		ID:                 "pkg-6",
		Name:               "Enterprise DC",
		Price:              500,
		DurationDays:       120,
		DailyProfitPercent: 2.5,
		Hashrate:           "2.5 PH/s",
		Icon:               "devices/enterprise-dc.jpg",
	},
	{
		ID:                 "pkg-7",
		Name:               "Bitmain Antminer L7",
		Price:              750,
		DurationDays:       150,
		DailyProfitPercent: 2.5,
		Hashrate:           "9.5 GH/s",
		Icon:               "devices/antminer-l7.png",
	},
	{
		ID:                 "pkg-8",
		Name:               "Immersion Mining Rack",
		Price:              1000,
		DurationDays:       180,
		DailyProfitPercent: 2.5,
		Hashrate:           "18 PH/s",
		Icon:               "devices/immersion-rack.jpg",
	},
}

// ErrDefinitionNotFound запрошенного устройства нет в каталоге
var ErrDefinitionNotFound = errors.New("unknown device")

// Find возвращает определение устройства по ID
func Find(id string) (*Definition, error) {
	for i := range Devices {
		if Devices[i].ID == id {
			return &Devices[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDefinitionNotFound, id)
}

// ValidTier проверяет, что пара (длительность, ставка) является
// одним из разрешенных пресетов активации
func ValidTier(durationDays int, dailyRatePercent float64) bool {
	for _, t := range Tiers {
		if t.DurationDays == durationDays && t.DailyRatePercent == dailyRatePercent {
			return true
		}
	}
	return false
}
