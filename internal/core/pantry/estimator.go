package pantry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"souschef/internal/core/ai/provider"
	"souschef/internal/pkg/common"
)

const estimateSystemPrompt = "You are a food safety assistant. " +
	"Given an ingredient, storage type (pantry/fridge/freezer), and purchase date, " +
	"estimate a conservative 'best by' date in ISO format (YYYY-MM-DD). " +
	"Use typical US guidance and err on the side of safety. " +
	"Respond ONLY in JSON with keys best_buy_date and reason."

// Estimate 模型估算的最佳賞味日
type Estimate struct {
	BestBuyDate common.Date `json:"best_buy_date"`
	Reason      string      `json:"reason"`
}

// Estimator 以模型估算最佳賞味日
type Estimator struct {
	generator provider.Generator
}

// NewEstimator 創建 Estimator
func NewEstimator(generator provider.Generator) *Estimator {
	return &Estimator{generator: generator}
}

// Estimate 估算 best-by；估出的日期早於購買日時視為無效
func (e *Estimator) Estimate(ctx context.Context, name string, category common.Category, purchased common.Date) (*Estimate, error) {
	user := fmt.Sprintf("Ingredient: %s\nStorage: %s\nPurchase date: %s\n",
		strings.TrimSpace(name), category, purchased)

	resp, err := e.generator.Generate(ctx, &provider.Request{
		System:   estimateSystemPrompt,
		User:     user,
		JSONMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("best-by estimation failed: %w", err)
	}

	v, err := common.ParseLooseJSON(resp.Content)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, errors.New("estimate must be a JSON object")
	}
	raw, _ := obj["best_buy_date"].(string)
	date, err := common.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid best_buy_date %q: %w", raw, err)
	}
	if date.Before(purchased.Time) {
		return nil, fmt.Errorf("best_buy_date %s is before purchase date %s", date, purchased)
	}

	reason, _ := obj["reason"].(string)
	return &Estimate{BestBuyDate: date, Reason: reason}, nil
}
