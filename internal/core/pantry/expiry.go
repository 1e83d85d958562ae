package pantry

import (
	"sort"

	"souschef/internal/pkg/common"
)

// ExpiryReport 過期與即將到期的食材
type ExpiryReport struct {
	Today        common.Date `json:"today"`
	WindowDays   int         `json:"window_days"`
	Expired      []Item      `json:"expired"`
	ExpiringSoon []Item      `json:"expiring_soon"`
}

// BuildExpiryReport best_buy_date <= today 為過期；today < best_buy_date <= today+window 為即將到期
func BuildExpiryReport(items []Item, today common.Date, windowDays int) ExpiryReport {
	report := ExpiryReport{
		Today:        today,
		WindowDays:   windowDays,
		Expired:      []Item{},
		ExpiringSoon: []Item{},
	}
	soon := today.AddDate(0, 0, windowDays)

	for _, it := range items {
		if it.BestBuyDate == nil {
			continue
		}
		best := common.DateOf(*it.BestBuyDate)
		switch {
		case !best.After(today.Time):
			report.Expired = append(report.Expired, it)
		case !best.After(soon):
			report.ExpiringSoon = append(report.ExpiringSoon, it)
		}
	}

	byDate := func(list []Item) {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].BestBuyDate.Before(*list[j].BestBuyDate)
		})
	}
	byDate(report.Expired)
	byDate(report.ExpiringSoon)
	return report
}
