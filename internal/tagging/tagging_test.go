package tagging

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/model"
)

func TestNewRejectsBadRules(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{"bad regexp", Rule{Pattern: "(", Tags: []string{"x"}}},
		{"no tags", Rule{Pattern: "coffee"}},
		{"blank tags", Rule{Pattern: "coffee", Tags: []string{" ", ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New([]Rule{tt.rule})
			assert.Error(t, err)
		})
	}
}

func TestMatch(t *testing.T) {
	tg, err := New([]Rule{
		{Pattern: `starbucks|coffee`, Tags: []string{"coffee", "food"}},
		{Pattern: `^github`, Tags: []string{"software"}},
		{Pattern: `sub`, Tags: []string{"subscription", "food"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"coffee", "food"}, tg.Match("STARBUCKS #123"))
	assert.Equal(t, []string{"food", "software", "subscription"}, tg.Match("GitHub *Pro Subscription"))
	assert.Empty(t, tg.Match("rent"))
}

func TestSuggestTags(t *testing.T) {
	tg, err := New([]Rule{{Pattern: "coffee", Tags: []string{"coffee"}}})
	require.NoError(t, err)

	a := model.Transaction{ID: uuid.New(), Description: "Blue Bottle Coffee"}
	b := model.Transaction{ID: uuid.New(), Description: "Hardware store"}
	got, err := tg.SuggestTags(context.Background(), []model.Transaction{a, b})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID][]string{a.ID: {"coffee"}}, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tg.SuggestTags(ctx, []model.Transaction{a})
	assert.ErrorIs(t, err, context.Canceled)
}
