package pantry

import (
	"math"
	"sort"

	"souschef/internal/pkg/common"
)

// GroceryLine 需要採買的數量
type GroceryLine struct {
	Name   string  `json:"name"`
	Unit   string  `json:"unit"`
	Amount float64 `json:"amount"`
}

// GroceryList 彙總所選食譜的缺口：逐一比對庫存可換算的量，依 (名稱, 單位) 累加
func GroceryList(recipes []common.CandidateRecipe, items []Item) []GroceryLine {
	stock := make(map[string][]Item)
	for _, it := range items {
		key := common.NormalizeName(it.Name)
		stock[key] = append(stock[key], it)
	}

	available := func(name, unit string) float64 {
		total := 0.0
		for _, it := range stock[name] {
			from := it.Unit
			if from == "" {
				from = unit
			}
			if v, ok := ConvertAmount(it.Quantity, from, unit); ok {
				total += v
			}
		}
		return total
	}

	type key struct{ name, unit string }
	needed := make(map[key]float64)
	for _, r := range recipes {
		for _, ing := range r.Ingredients {
			name := common.NormalizeName(ing.Name)
			amount := float64(ing.Amount)
			if name == "" || amount <= 0 {
				continue
			}
			short := math.Max(0, amount-available(name, ing.Unit))
			if short > 0 {
				needed[key{name, NormalizeUnit(ing.Unit)}] += short
			}
		}
	}

	out := make([]GroceryLine, 0, len(needed))
	for k, amt := range needed {
		out = append(out, GroceryLine{Name: k.name, Unit: k.unit, Amount: math.Round(amt*100) / 100})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Unit < out[j].Unit
	})
	return out
}
