package recipe

import (
	"testing"

	"souschef/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackfillFillsBlankFields(t *testing.T) {
	in := []common.RecommendedRecipe{{
		CandidateRecipe: common.CandidateRecipe{
			Title:    "  SPINACH chickpea curry ",
			Source:   common.StrPtr(" "),
			PrepTime: common.StrPtr("5 mins"),
			Tags:     []string{},
		},
		UsedItems:    []string{"spinach"},
		MissingItems: []string{},
		Explanation:  "uses spinach",
	}}

	out, report := Backfill(in, []common.CandidateRecipe{curryCandidate()})
	require.Len(t, out, 1)
	got := out[0]

	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 2, *got.ID)
	assert.Equal(t, "https://example.com/curry", *got.Source)
	assert.Equal(t, "5 mins", *got.PrepTime, "model value kept")
	assert.Equal(t, "20 mins", *got.CookTime)
	assert.Equal(t, "4", got.Servings.Value)
	assert.Equal(t, []string{"vegetarian"}, got.Tags)
	assert.Equal(t, curryCandidate().Ingredients, got.Ingredients)
	assert.Equal(t, "uses spinach", got.Explanation)
	assert.Equal(t, "  SPINACH chickpea curry ", got.Title)

	assert.Equal(t, 1, report.Repairs["ingredients"])
	assert.Equal(t, 1, report.Repairs["source"])
	assert.Zero(t, report.Repairs["prep_time"])
	assert.Empty(t, report.Failures)
}

func TestBackfillRestoresAlteredIngredients(t *testing.T) {
	altered := []common.Ingredient{
		{Name: "spinach", Amount: 1, Unit: "bunch"},
		{Name: "chickpeas", Amount: 400, Unit: "g"},
		{Name: "rice", Amount: 150, Unit: "g"},
	}
	in := []common.RecommendedRecipe{{CandidateRecipe: common.CandidateRecipe{Title: "Spinach Chickpea Curry", Ingredients: altered}}}

	cands := []common.CandidateRecipe{curryCandidate()}
	out, _ := Backfill(in, cands)
	assert.Equal(t, curryCandidate().Ingredients, out[0].Ingredients)

	// 深拷貝，修改結果不影響候選
	out[0].Ingredients[0].Amount = 999
	assert.Equal(t, common.Amount(200), cands[0].Ingredients[0].Amount)
}

func TestBackfillKeepsMatchingIngredients(t *testing.T) {
	in := []common.RecommendedRecipe{{CandidateRecipe: common.CandidateRecipe{
		Title:       "Spinach Chickpea Curry",
		Ingredients: curryCandidate().Ingredients,
	}}}
	_, report := Backfill(in, []common.CandidateRecipe{curryCandidate()})
	assert.Zero(t, report.Repairs["ingredients"])
}

func TestBackfillFirstCandidateWins(t *testing.T) {
	web := curryCandidate()
	web.ID = nil
	web.Source = common.StrPtr("https://web.example.com/curry")
	web.Ingredients = []common.Ingredient{{Name: "spinach", Amount: 1, Unit: "kg"}}

	in := []common.RecommendedRecipe{{CandidateRecipe: common.CandidateRecipe{Title: "Spinach Chickpea Curry"}}}
	out, _ := Backfill(in, []common.CandidateRecipe{curryCandidate(), web})
	assert.Equal(t, "https://example.com/curry", *out[0].Source)
	assert.Len(t, out[0].Ingredients, 3)
}

func TestBackfillUnmatchedUntouched(t *testing.T) {
	in := []common.RecommendedRecipe{{
		CandidateRecipe: common.CandidateRecipe{Title: "Invented Dish", Ingredients: []common.Ingredient{{Name: "air"}}},
	}}
	out, report := Backfill(in, []common.CandidateRecipe{curryCandidate()})
	assert.Equal(t, in, out)
	assert.Zero(t, report.Matched)
}

func TestBackfillEmptyCandidateIngredientsKeepModel(t *testing.T) {
	cand := common.CandidateRecipe{Title: "Toast"}
	in := []common.RecommendedRecipe{{CandidateRecipe: common.CandidateRecipe{
		Title:       "toast",
		Ingredients: []common.Ingredient{{Name: "bread", Amount: 2, Unit: "slice"}},
	}}}
	out, _ := Backfill(in, []common.CandidateRecipe{cand})
	assert.Equal(t, in[0].Ingredients, out[0].Ingredients)
}
