package recipe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"souschef/internal/core/ai/provider"
	"souschef/internal/pkg/common"
	"souschef/internal/pkg/metrics"

	"go.uber.org/zap"
)

// WebResult 網路候選的取得結果；Degraded 時 Candidates 為空清單而非錯誤
type WebResult struct {
	Candidates []common.CandidateRecipe `json:"candidates"`
	Degraded   bool                     `json:"degraded"`
	Reason     string                   `json:"reason,omitempty"`
	Shape      string                   `json:"shape,omitempty"`
}

// WebSource 透過模型搜尋網路食譜頁面
type WebSource struct {
	generators []provider.Generator
}

// NewWebSource 依優先順序傳入各呼叫形式
func NewWebSource(generators ...provider.Generator) *WebSource {
	return &WebSource{generators: generators}
}

var webExample = map[string]interface{}{
	"recipes": []interface{}{
		map[string]interface{}{
			"title": "Example Recipe",
			"url":   "https://example.com/recipe",
			"ingredients": []interface{}{
				map[string]interface{}{"name": "spinach", "amount": 200, "unit": "g"},
			},
			"steps":          "Short steps",
			"detailed_steps": "1) Do this. 2) Do that.",
			"servings":       4,
			"prep_time":      "10 mins",
			"cook_time":      "20 mins",
			"tags":           []string{"vegetarian"},
		},
	},
}

func buildWebPrompt(names []string, topK int) string {
	example, _ := json.Marshal(webExample)
	return fmt.Sprintf("Find the top %d recipe webpages that use these ingredients: %s.\n"+
		"Return ONLY JSON matching this shape (an object with key 'recipes' which is a list):\n%s",
		topK, strings.Join(names, ", "), string(example))
}

// Fetch 取得最多 topK 筆網路候選，任何失敗都降級為空結果
func (w *WebSource) Fetch(ctx context.Context, names []string, topK int) WebResult {
	names = common.NormalizeNames(names)
	empty := WebResult{Candidates: []common.CandidateRecipe{}, Degraded: true}

	switch {
	case topK <= 0:
		empty.Degraded = false
		return empty
	case len(names) == 0:
		empty.Reason = "no ingredients"
		return empty
	case len(w.generators) == 0:
		empty.Reason = provider.ErrNoGenerators.Error()
		metrics.WebCandidateFetches.WithLabelValues("degraded").Inc()
		return empty
	}

	req := &provider.Request{User: buildWebPrompt(names, topK), JSONMode: true}

	var reasons []string
	for _, g := range w.generators {
		if ctx.Err() != nil {
			reasons = append(reasons, ctx.Err().Error())
			break
		}

		resp, err := g.Generate(ctx, req)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %v", g.Name(), err))
			continue
		}
		candidates, err := parseWebCandidates(resp.Content, topK)
		if err != nil {
			common.LogDebug("網路候選輸出無法解析",
				zap.String("shape", g.Name()),
				zap.String("raw", common.Truncate(resp.Content, 500)),
			)
			reasons = append(reasons, fmt.Sprintf("%s: %v", g.Name(), err))
			continue
		}

		metrics.WebCandidateFetches.WithLabelValues("ok").Inc()
		common.LogInfo("已取得網路候選食譜",
			zap.String("shape", g.Name()),
			zap.Int("count", len(candidates)),
		)
		return WebResult{Candidates: candidates, Shape: g.Name()}
	}

	empty.Reason = strings.Join(reasons, "; ")
	metrics.WebCandidateFetches.WithLabelValues("degraded").Inc()
	common.LogWarn("網路候選取得失敗，改用空清單", zap.String("reason", empty.Reason))
	return empty
}

func parseWebCandidates(raw string, topK int) ([]common.CandidateRecipe, error) {
	v, err := common.ParseLooseJSON(raw)
	if err != nil {
		return nil, err
	}

	var list []interface{}
	switch t := v.(type) {
	case map[string]interface{}:
		l, ok := t["recipes"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("missing 'recipes' list")
		}
		list = l
	case []interface{}:
		list = t
	default:
		return nil, fmt.Errorf("unexpected top-level value")
	}

	out := make([]common.CandidateRecipe, 0, len(list))
	for _, item := range list {
		if len(out) == topK {
			break
		}
		data, err := json.Marshal(item)
		if err != nil {
			continue
		}
		var sr common.SourcedRecipe
		if err := json.Unmarshal(data, &sr); err != nil {
			// 單筆格式錯誤就略過
			continue
		}
		c := sr.Resolve()
		if c.Title == "" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
