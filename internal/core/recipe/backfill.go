package recipe

import (
	"fmt"

	"souschef/internal/pkg/common"
	"souschef/internal/pkg/metrics"

	"go.uber.org/zap"
)

// BackfillReport 回填結果摘要
type BackfillReport struct {
	Matched  int            `json:"matched"`
	Repairs  map[string]int `json:"repairs"`
	Failures []string       `json:"failures,omitempty"`
}

func (r *BackfillReport) repaired(field string) {
	r.Repairs[field]++
	metrics.BackfillRepairs.WithLabelValues(field).Inc()
}

// Backfill 以候選食譜補齊模型留空的欄位，並還原被改動的食材清單。
// 單一食譜失敗不影響其他食譜，失敗時保留該食譜原樣
func Backfill(recipes []common.RecommendedRecipe, candidates []common.CandidateRecipe) ([]common.RecommendedRecipe, BackfillReport) {
	report := BackfillReport{Repairs: map[string]int{}}

	lookup := make(map[string]common.CandidateRecipe, len(candidates))
	for _, c := range candidates {
		key := c.TitleKey()
		if key == "" {
			continue
		}
		// 同標題時第一個候選優先
		if _, ok := lookup[key]; !ok {
			lookup[key] = c
		}
	}

	out := make([]common.RecommendedRecipe, len(recipes))
	for i, r := range recipes {
		cand, ok := lookup[r.TitleKey()]
		if !ok {
			out[i] = r
			continue
		}
		report.Matched++

		filled, err := backfillOne(r, cand, &report)
		if err != nil {
			report.Failures = append(report.Failures, r.Title)
			common.LogWarn("回填失敗，保留模型輸出",
				zap.String("title", r.Title),
				zap.Error(err),
			)
			out[i] = r
			continue
		}
		out[i] = filled
	}
	return out, report
}

func backfillOne(r common.RecommendedRecipe, cand common.CandidateRecipe, report *BackfillReport) (out common.RecommendedRecipe, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("backfill panic: %v", p)
		}
	}()

	out = r
	c := cand.Clone()

	if out.ID == nil && c.ID != nil {
		out.ID = c.ID
		report.repaired("id")
	}
	if common.IsBlank(out.Steps) && !common.IsBlank(c.Steps) {
		out.Steps = c.Steps
		report.repaired("steps")
	}
	if common.IsBlank(out.Source) && !common.IsBlank(c.Source) {
		out.Source = c.Source
		report.repaired("source")
	}
	if common.IsBlank(out.DetailedSteps) && !common.IsBlank(c.DetailedSteps) {
		out.DetailedSteps = c.DetailedSteps
		report.repaired("detailed_steps")
	}
	if (out.Servings == nil || out.Servings.Value == "") && c.Servings != nil && c.Servings.Value != "" {
		out.Servings = c.Servings
		report.repaired("servings")
	}
	if common.IsBlank(out.PrepTime) && !common.IsBlank(c.PrepTime) {
		out.PrepTime = c.PrepTime
		report.repaired("prep_time")
	}
	if common.IsBlank(out.CookTime) && !common.IsBlank(c.CookTime) {
		out.CookTime = c.CookTime
		report.repaired("cook_time")
	}
	if len(out.Tags) == 0 && len(c.Tags) > 0 {
		out.Tags = c.Tags
		report.repaired("tags")
	}
	// 食材以候選為準，數量與單位不得被模型改動
	if len(c.Ingredients) > 0 && !common.SameIngredients(out.Ingredients, c.Ingredients) {
		out.Ingredients = c.Ingredients
		report.repaired("ingredients")
	}
	return out, nil
}
