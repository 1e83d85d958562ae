package recipe

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"souschef/internal/pkg/common"
)

// 食材到期狀態
const (
	StatusExpired      = "expired"
	StatusExpiringSoon = "expiring_soon"
	StatusFresh        = "fresh"
	StatusUnknown      = "unknown"
)

// PantrySnapshotItem 送給模型的食材快照
type PantrySnapshotItem struct {
	Name        string          `json:"name"`
	Category    common.Category `json:"category"`
	Quantity    float64         `json:"quantity"`
	Unit        string          `json:"unit"`
	BestBuyDate *common.Date    `json:"best_buy_date"`
	Status      string          `json:"status"`
}

// ExpiryStatus best_buy_date <= today 為過期；today+window 內為即將到期
func ExpiryStatus(best *common.Date, today common.Date, windowDays int) string {
	if best == nil {
		return StatusUnknown
	}
	if !best.After(today.Time) {
		return StatusExpired
	}
	if !best.After(today.AddDate(0, 0, windowDays)) {
		return StatusExpiringSoon
	}
	return StatusFresh
}

// BuildSnapshot 依到期急迫度排序：過期優先，再依 best-by 由近到遠，無日期最後，同日依名稱
func BuildSnapshot(items []common.PantryItem, today common.Date, windowDays int) []PantrySnapshotItem {
	out := make([]PantrySnapshotItem, 0, len(items))
	for _, it := range items {
		out = append(out, PantrySnapshotItem{
			Name:        common.NormalizeName(it.Name),
			Category:    it.Category,
			Quantity:    it.Quantity,
			Unit:        it.Unit,
			BestBuyDate: it.BestBuyDate,
			Status:      ExpiryStatus(it.BestBuyDate, today, windowDays),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].BestBuyDate, out[j].BestBuyDate
		switch {
		case a == nil && b == nil:
			return out[i].Name < out[j].Name
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(b.Time):
			return a.Before(b.Time)
		default:
			return out[i].Name < out[j].Name
		}
	})
	return out
}

// jsonExample 輸出格式範例
var jsonExample = map[string]interface{}{
	"recipes": []interface{}{
		map[string]interface{}{
			"title":         "Spinach Chickpea Curry",
			"used_items":    []string{"spinach", "chickpeas"},
			"missing_items": []string{"rice"},
			"explanation":   "Uses spinach and chickpeas that are near best-by...",
			"ingredients": []interface{}{
				map[string]interface{}{"name": "spinach", "amount": 200, "unit": "g"},
				map[string]interface{}{"name": "chickpeas", "amount": 400, "unit": "g"},
			},
			"source":         "https://example.com/recipe",
			"detailed_steps": "1) Do this. 2) Do that.",
			"servings":       4,
			"prep_time":      "10 mins",
			"cook_time":      "20 mins",
			"tags":           []string{"vegetarian", "quick"},
		},
	},
}

// buildSystemPrompt 固定指令 + 輸出範例
func buildSystemPrompt(minRecipes, maxRecipes int) string {
	example, _ := json.Marshal(jsonExample)
	return fmt.Sprintf("You are a meal planning assistant called SousChef. "+
		"You receive the user's pantry items (with optional best_buy_date and an expiry status) and a list of candidate recipes. "+
		"Each candidate recipe has a structured 'ingredients' field: a list of objects with 'name', 'amount', and 'unit'. "+
		"Pick %d-%d recipes that maximize usage of pantry items, prioritizing items whose status is 'expired' or 'expiring_soon', then items closest to their best_buy_date. "+
		"Explain briefly why each recipe is chosen with respect to waste reduction. "+
		"For each chosen recipe, infer which pantry items it uses and which extra ingredients are missing. "+
		"For each chosen recipe, include a 'source' field (URL or attribution) if known, otherwise set it to null. "+
		"Also provide a 'detailed_steps' field with step-by-step, user-friendly instructions. "+
		"Additionally include 'servings', 'prep_time', 'cook_time', and a 'tags' list when available. "+
		"In your output, for each recipe, you MUST copy the exact 'ingredients' list from the original candidate recipe without changing amounts or units. "+
		"Return ONLY JSON matching this schema. Follow this example exactly (do not add narration):\n%s",
		minRecipes, maxRecipes, string(example))
}

type userPayload struct {
	Pantry           []PantrySnapshotItem     `json:"pantry"`
	CandidateRecipes []common.CandidateRecipe `json:"candidate_recipes"`
}

// buildUserPrompt 食材快照與候選食譜
func buildUserPrompt(snapshot []PantrySnapshotItem, candidates []common.CandidateRecipe) (string, error) {
	if candidates == nil {
		candidates = []common.CandidateRecipe{}
	}
	data, err := json.Marshal(userPayload{Pantry: snapshot, CandidateRecipes: candidates})
	if err != nil {
		return "", fmt.Errorf("failed to encode prompt payload: %w", err)
	}
	return string(data), nil
}

// buildRepairPrompt 附上前一次的原始輸出與失敗原因，要求只回傳 JSON
func buildRepairPrompt(user, lastRaw, reason string) string {
	var b strings.Builder
	b.WriteString(user)
	if lastRaw != "" {
		b.WriteString("\n\nYour previous response was:\n")
		b.WriteString(lastRaw)
	}
	b.WriteString("\n\nThat response was rejected: ")
	b.WriteString(reason)
	b.WriteString("\nRegenerate the answer. Return ONLY a single JSON object with a non-empty 'recipes' list, ")
	b.WriteString("each recipe having a non-empty 'title' and an 'ingredients' list of objects with a non-empty 'name'. No narration, no markdown.")
	return b.String()
}
