package pantry

import "strings"

// 單位別名
var unitAliases = map[string]string{
	"g": "g", "gram": "g", "grams": "g",
	"kg": "kg", "kilogram": "kg", "kilograms": "kg",
	"oz": "oz", "ounce": "oz", "ounces": "oz",
	"lb": "lb", "lbs": "lb", "pound": "lb", "pounds": "lb",
	"ml": "ml", "milliliter": "ml", "milliliters": "ml",
	"l": "l", "liter": "l", "liters": "l",
	"tsp": "tsp", "teaspoon": "tsp", "teaspoons": "tsp",
	"tbsp": "tbsp", "tablespoon": "tbsp", "tablespoons": "tbsp",
	"cup": "cup", "cups": "cup",
	"item": "item", "items": "item", "pcs": "item", "piece": "item", "pieces": "item",
}

type unitDim int

const (
	dimMass unitDim = iota + 1
	dimVolume
	dimCount
)

type unitFactor struct {
	dim    unitDim
	toBase float64 // 質量以 g、體積以 ml 為基準
}

var unitFactors = map[string]unitFactor{
	"g":    {dimMass, 1},
	"kg":   {dimMass, 1000},
	"oz":   {dimMass, 28.3495},
	"lb":   {dimMass, 453.592},
	"ml":   {dimVolume, 1},
	"l":    {dimVolume, 1000},
	"tsp":  {dimVolume, 4.92892},
	"tbsp": {dimVolume, 14.7868},
	"cup":  {dimVolume, 240},
	"item": {dimCount, 1},
}

// NormalizeUnit 去空白、小寫、套用別名；未知單位原樣回傳
func NormalizeUnit(u string) string {
	u = strings.ToLower(strings.TrimSpace(u))
	if a, ok := unitAliases[u]; ok {
		return a
	}
	return u
}

// ConvertAmount 在同一維度內換算；無法換算時回傳原值與 false
func ConvertAmount(amount float64, from, to string) (float64, bool) {
	from, to = NormalizeUnit(from), NormalizeUnit(to)
	if from == to {
		return amount, true
	}
	f, ok1 := unitFactors[from]
	t, ok2 := unitFactors[to]
	if !ok1 || !ok2 || f.dim != t.dim {
		return amount, false
	}
	return amount * f.toBase / t.toBase, true
}
