package recipe

import (
	"strings"
	"testing"

	"souschef/internal/pkg/common"

	"github.com/stretchr/testify/assert"
)

func TestExpiryStatus(t *testing.T) {
	now := common.DateOf(today)
	tests := []struct {
		name string
		best *common.Date
		want string
	}{
		{"no date", nil, StatusUnknown},
		{"yesterday", datePtr(-1), StatusExpired},
		{"today", datePtr(0), StatusExpired},
		{"tomorrow", datePtr(1), StatusExpiringSoon},
		{"window edge", datePtr(2), StatusExpiringSoon},
		{"after window", datePtr(3), StatusFresh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpiryStatus(tt.best, now, 2))
		})
	}
}

func TestBuildSnapshotOrdering(t *testing.T) {
	items := []common.PantryItem{
		{Name: "Rice", BestBuyDate: nil},
		{Name: "Milk", BestBuyDate: datePtr(5)},
		{Name: "Yogurt", BestBuyDate: datePtr(-2)},
		{Name: "Apples", BestBuyDate: nil},
		{Name: "Butter", BestBuyDate: datePtr(5)},
		{Name: "  Baby   Spinach", BestBuyDate: datePtr(1)},
	}
	snap := BuildSnapshot(items, common.DateOf(today), 2)

	names := make([]string, len(snap))
	for i, s := range snap {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"yogurt", "baby spinach", "butter", "milk", "apples", "rice"}, names)
	assert.Equal(t, StatusExpired, snap[0].Status)
	assert.Equal(t, StatusExpiringSoon, snap[1].Status)
	assert.Equal(t, StatusUnknown, snap[5].Status)
}

func TestBuildRepairPrompt(t *testing.T) {
	p := buildRepairPrompt("USER", "", "generation call failed: boom")
	assert.True(t, strings.HasPrefix(p, "USER"))
	assert.NotContains(t, p, "Your previous response was")
	assert.Contains(t, p, "generation call failed: boom")

	p = buildRepairPrompt("USER", "{bad", "missing 'recipes' key")
	assert.Contains(t, p, "Your previous response was:\n{bad")
	assert.Contains(t, p, "missing 'recipes' key")
}

func TestBuildUserPromptEmptyCandidates(t *testing.T) {
	p, err := buildUserPrompt([]PantrySnapshotItem{}, nil)
	assert.NoError(t, err)
	assert.JSONEq(t, `{"pantry":[],"candidate_recipes":[]}`, p)
}
