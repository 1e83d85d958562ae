package common

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeNameIdempotent(t *testing.T) {
	inputs := []string{"  Spinach ", "RED   Onion", "chickpeas", "\tOlive\nOil  ", ""}
	for _, in := range inputs {
		once := NormalizeName(in)
		assert.Equal(t, once, NormalizeName(once), "input %q", in)
	}
	assert.Equal(t, "red onion", NormalizeName("RED   Onion"))
}

func TestNormalizeNames(t *testing.T) {
	got := NormalizeNames([]string{"Spinach", " spinach", "Rice", "", "  ", "rice "})
	assert.Equal(t, []string{"spinach", "rice"}, got)
}

func TestAmountUnmarshal(t *testing.T) {
	var ing []Ingredient
	raw := `[{"name":"a","amount":2.5,"unit":"g"},{"name":"b","amount":"3","unit":"cup"},{"name":"c","amount":"a pinch","unit":""},{"name":"d","amount":null,"unit":""}]`
	require.NoError(t, json.Unmarshal([]byte(raw), &ing))
	assert.Equal(t, Amount(2.5), ing[0].Amount)
	assert.Equal(t, Amount(3), ing[1].Amount)
	assert.Equal(t, Amount(0), ing[2].Amount)
	assert.Equal(t, Amount(0), ing[3].Amount)
}

func TestServingsAcceptsNumberOrString(t *testing.T) {
	var r CandidateRecipe
	require.NoError(t, json.Unmarshal([]byte(`{"title":"x","servings":4}`), &r))
	require.NotNil(t, r.Servings)
	assert.Equal(t, "4", r.Servings.Value)

	require.NoError(t, json.Unmarshal([]byte(`{"title":"x","servings":"2-3 people"}`), &r))
	assert.Equal(t, "2-3 people", r.Servings.Value)

	out, err := json.Marshal(NewServings(4))
	require.NoError(t, err)
	assert.Equal(t, "4", string(out))
}

func TestDateJSON(t *testing.T) {
	item := PantryItem{Name: "milk", Category: CategoryFridge, Quantity: 1, Unit: "l"}
	d := NewDate(2024, time.March, 5)
	item.BestBuyDate = &d

	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"best_buy_date":"2024-03-05"`)

	var back PantryItem
	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.BestBuyDate)
	assert.True(t, back.BestBuyDate.Equal(d.Time))

	undated, err := json.Marshal(PantryItem{Name: "salt"})
	require.NoError(t, err)
	assert.Contains(t, string(undated), `"best_buy_date":null`)
}

func TestCandidateCloneIsDeep(t *testing.T) {
	orig := CandidateRecipe{
		ID:          IntPtr(1),
		Title:       "Soup",
		Ingredients: []Ingredient{{Name: "water", Amount: 1, Unit: "l"}},
		Tags:        []string{"easy"},
	}
	cp := orig.Clone()
	cp.Ingredients[0].Amount = 99
	*cp.ID = 42
	cp.Tags[0] = "hard"

	assert.Equal(t, Amount(1), orig.Ingredients[0].Amount)
	assert.Equal(t, 1, *orig.ID)
	assert.Equal(t, "easy", orig.Tags[0])
}

func TestRecommendedRecipeMarshalsAllKeys(t *testing.T) {
	data, err := json.Marshal(RecommendedRecipe{CandidateRecipe: CandidateRecipe{Title: "x"}})
	require.NoError(t, err)

	var keys map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &keys))
	for _, k := range []string{"id", "title", "ingredients", "steps", "source", "detailed_steps",
		"servings", "prep_time", "cook_time", "tags", "used_items", "missing_items", "explanation"} {
		assert.Contains(t, keys, k)
	}
}

func TestCategoryValid(t *testing.T) {
	assert.True(t, CategoryFreezer.Valid())
	assert.False(t, Category("garage").Valid())
}
