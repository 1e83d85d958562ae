package recipe

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"souschef/internal/pkg/common"
)

// validateRecommendation 檢查模型輸出的結構，回傳可直接回饋給模型的原因
func validateRecommendation(v interface{}) error {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return fmt.Errorf("top-level value must be a JSON object")
	}
	raw, exists := obj["recipes"]
	if !exists {
		return fmt.Errorf("missing 'recipes' key")
	}
	recipes, ok := raw.([]interface{})
	if !ok {
		return fmt.Errorf("'recipes' must be a list")
	}
	if len(recipes) == 0 {
		return fmt.Errorf("'recipes' list is empty")
	}

	for i, r := range recipes {
		rec, ok := r.(map[string]interface{})
		if !ok {
			return fmt.Errorf("recipes[%d] must be an object", i)
		}
		title, _ := rec["title"].(string)
		if strings.TrimSpace(title) == "" {
			return fmt.Errorf("recipes[%d] must have a non-empty 'title'", i)
		}
		ings, ok := rec["ingredients"].([]interface{})
		if !ok {
			return fmt.Errorf("recipes[%d] (%s) must have an 'ingredients' list", i, title)
		}
		for j, ing := range ings {
			m, ok := ing.(map[string]interface{})
			if !ok {
				return fmt.Errorf("recipes[%d].ingredients[%d] must be an object", i, j)
			}
			name, _ := m["name"].(string)
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("recipes[%d].ingredients[%d] must have a non-empty 'name'", i, j)
			}
		}
	}
	return nil
}

// decodeRecipes 將已驗證的輸出轉為 RecommendedRecipe，缺少的欄位補上空值
func decodeRecipes(v interface{}) []common.RecommendedRecipe {
	list := v.(map[string]interface{})["recipes"].([]interface{})
	out := make([]common.RecommendedRecipe, 0, len(list))
	for _, item := range list {
		out = append(out, decodeRecipe(item.(map[string]interface{})))
	}
	return out
}

func decodeRecipe(m map[string]interface{}) common.RecommendedRecipe {
	r := common.RecommendedRecipe{
		CandidateRecipe: common.CandidateRecipe{
			ID:            intValue(m["id"]),
			Title:         strings.TrimSpace(m["title"].(string)),
			Ingredients:   ingredientList(m["ingredients"]),
			Steps:         stringValue(m["steps"]),
			Source:        stringValue(m["source"]),
			DetailedSteps: stringValue(m["detailed_steps"]),
			Servings:      servingsValue(m["servings"]),
			PrepTime:      stringValue(m["prep_time"]),
			CookTime:      stringValue(m["cook_time"]),
			Tags:          stringList(m["tags"]),
		},
		UsedItems:    stringList(m["used_items"]),
		MissingItems: stringList(m["missing_items"]),
	}
	if r.Source == nil {
		r.Source = stringValue(m["url"])
	}
	if s := stringValue(m["explanation"]); s != nil {
		r.Explanation = *s
	}
	return r
}

func stringValue(v interface{}) *string {
	switch t := v.(type) {
	case string:
		return &t
	case json.Number:
		s := t.String()
		return &s
	case bool:
		s := strconv.FormatBool(t)
		return &s
	default:
		return nil
	}
}

func intValue(v interface{}) *int {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			i := int(n)
			return &i
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return &n
		}
	}
	return nil
}

func servingsValue(v interface{}) *common.Servings {
	switch t := v.(type) {
	case json.Number:
		return &common.Servings{Value: t.String()}
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		return &common.Servings{Value: strings.TrimSpace(t)}
	default:
		return nil
	}
}

// stringList 接受字串陣列或逗號分隔字串
func stringList(v interface{}) []string {
	out := []string{}
	switch t := v.(type) {
	case []interface{}:
		for _, item := range t {
			if s := stringValue(item); s != nil && strings.TrimSpace(*s) != "" {
				out = append(out, strings.TrimSpace(*s))
			}
		}
	case string:
		for _, part := range strings.Split(t, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func ingredientList(v interface{}) []common.Ingredient {
	list, _ := v.([]interface{})
	out := make([]common.Ingredient, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		ing := common.Ingredient{}
		if s := stringValue(m["name"]); s != nil {
			ing.Name = strings.TrimSpace(*s)
		}
		if s := stringValue(m["unit"]); s != nil {
			ing.Unit = *s
		}
		if s := stringValue(m["amount"]); s != nil {
			if f, err := strconv.ParseFloat(strings.TrimSpace(*s), 64); err == nil {
				ing.Amount = common.Amount(f)
			}
		}
		out = append(out, ing)
	}
	return out
}
