package price

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"budgetchef/internal/platform/postgres"
	"budgetchef/internal/recipe"
)

type mockStore struct {
	prices      []*QuarterPrice
	lines       []*RecipeLine
	trend       []*TrendRow
	err         error
	calledTrend string
}

func (m *mockStore) IngredientPrices(ctx context.Context, ingredientName string, quarter int) ([]*QuarterPrice, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*QuarterPrice
	for _, p := range m.prices {
		if p.IngredientName == ingredientName && (quarter == 0 || p.Quarter == quarter) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockStore) RecipeLines(ctx context.Context, recipeName string, quarter int) ([]*RecipeLine, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*RecipeLine
	for _, l := range m.lines {
		if l.RecipeName == recipeName && (quarter == 0 || l.Quarter == quarter) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockStore) IngredientTrend(ctx context.Context, ingredientName string) ([]*TrendRow, error) {
	m.calledTrend = "ingredient"
	return m.trend, m.err
}

func (m *mockStore) RecipeTrend(ctx context.Context, recipeName string) ([]*TrendRow, error) {
	m.calledTrend = "recipe"
	return m.trend, m.err
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func soupLine(quarter int, ingredient, amount, price string) *RecipeLine {
	return &RecipeLine{
		Quarter:    quarter,
		RecipeName: "Soup",
		Line: recipe.Line{
			Name:   ingredient,
			Amount: dec(amount),
			Price:  decimal.NewNullDecimal(dec(price)),
		},
	}
}

// trendRows builds rows the way LAG() over the series would.
func trendRows(name string, quarters []int, values ...string) []*TrendRow {
	rows := make([]*TrendRow, 0, len(values))
	for i, v := range values {
		r := &TrendRow{Name: name, Quarter: quarters[i], Value: dec(v)}
		if i > 0 {
			r.Previous = decimal.NewNullDecimal(dec(values[i-1]))
		}
		rows = append(rows, r)
	}
	return rows
}

func newTestService(store Store) *Service {
	return NewService(store, zap.NewNop())
}

func TestIngredientPrices(t *testing.T) {
	store := &mockStore{prices: []*QuarterPrice{
		{Quarter: 1, IngredientName: "onion", Price: dec("2.0")},
		{Quarter: 2, IngredientName: "onion", Price: dec("2.5")},
	}}
	svc := newTestService(store)

	all, err := svc.IngredientPrices(context.Background(), "onion", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	q2, err := svc.IngredientPrices(context.Background(), "onion", 2)
	require.NoError(t, err)
	require.Len(t, q2, 1)
	assert.Equal(t, "2.5", q2[0].Price.String())

	none, err := svc.IngredientPrices(context.Background(), "saffron", 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = svc.IngredientPrices(context.Background(), "onion", 7)
	assert.ErrorIs(t, err, ErrInvalidQuarter)
}

func TestRecipePrices_Soup(t *testing.T) {
	store := &mockStore{lines: []*RecipeLine{
		soupLine(1, "onion", "100", "2.0"),
		soupLine(2, "onion", "100", "2.5"),
	}}
	svc := newTestService(store)

	costs, err := svc.RecipePrices(context.Background(), "Soup", 1)
	require.NoError(t, err)
	require.Len(t, costs, 1)
	assert.Equal(t, 1, costs[0].Quarter)
	assert.Equal(t, "Soup", costs[0].RecipeName)
	assert.Equal(t, "200.00", costs[0].TotalCost.StringFixed(2))
	assert.Equal(t, "onion (100g × 2.0원/g = 200.0원)", costs[0].IngredientsDetail)
}

func TestRecipePrices_GroupsByQuarter(t *testing.T) {
	store := &mockStore{lines: []*RecipeLine{
		soupLine(1, "onion", "100", "2.0"),
		soupLine(1, "salt", "3", "0.5"),
		soupLine(3, "onion", "100", "2.5"),
	}}
	svc := newTestService(store)

	costs, err := svc.RecipePrices(context.Background(), "Soup", 0)
	require.NoError(t, err)
	require.Len(t, costs, 2)

	assert.Equal(t, 1, costs[0].Quarter)
	assert.Equal(t, "201.50", costs[0].TotalCost.StringFixed(2))
	assert.Equal(t, "onion (100g × 2.0원/g = 200.0원)\nsalt (3g × 0.5원/g = 1.5원)", costs[0].IngredientsDetail)

	assert.Equal(t, 3, costs[1].Quarter)
	assert.Equal(t, "250.00", costs[1].TotalCost.StringFixed(2))
}

func TestRecipePrices_Unknown(t *testing.T) {
	costs, err := newTestService(&mockStore{}).RecipePrices(context.Background(), "Nothing", 0)
	require.NoError(t, err)
	assert.Empty(t, costs)
}

func TestAnalyzeTrend(t *testing.T) {
	store := &mockStore{trend: trendRows("onion", []int{1, 2, 3}, "100", "150", "120")}
	svc := newTestService(store)

	points, err := svc.AnalyzeTrend(context.Background(), Target{Ingredient: "onion"})
	require.NoError(t, err)
	assert.Equal(t, "ingredient", store.calledTrend)

	var changes []float64
	for _, p := range points {
		changes = append(changes, p.ChangePercent)
		assert.False(t, p.Undefined)
	}
	assert.Equal(t, []float64{0, 50, -20}, changes)
}

func TestAnalyzeTrend_ComparesWithPrecedingPresentQuarter(t *testing.T) {
	store := &mockStore{trend: trendRows("Soup", []int{1, 3}, "200", "250")}
	svc := newTestService(store)

	points, err := svc.AnalyzeTrend(context.Background(), Target{Recipe: "Soup"})
	require.NoError(t, err)
	assert.Equal(t, "recipe", store.calledTrend)
	require.Len(t, points, 2)
	assert.Equal(t, 3, points[1].Quarter)
	assert.Equal(t, 25.0, points[1].ChangePercent)
}

func TestAnalyzeTrend_ZeroPreviousIsUndefined(t *testing.T) {
	store := &mockStore{trend: trendRows("water", []int{1, 2}, "0", "10")}

	points, err := newTestService(store).AnalyzeTrend(context.Background(), Target{Ingredient: "water"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, points[1].ChangePercent)
	assert.True(t, points[1].Undefined)
}

func TestAnalyzeTrend_InvalidTarget(t *testing.T) {
	svc := newTestService(&mockStore{})

	_, err := svc.AnalyzeTrend(context.Background(), Target{})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = svc.AnalyzeTrend(context.Background(), Target{Ingredient: "onion", Recipe: "Soup"})
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestStoreFailure(t *testing.T) {
	svc := newTestService(&mockStore{err: errors.New("db down")})
	ctx := context.Background()

	_, err := svc.IngredientPrices(ctx, "onion", 0)
	assert.ErrorIs(t, err, postgres.ErrUnavailable)

	_, err = svc.RecipePrices(ctx, "Soup", 0)
	assert.ErrorIs(t, err, postgres.ErrUnavailable)

	_, err = svc.AnalyzeTrend(ctx, Target{Recipe: "Soup"})
	assert.ErrorIs(t, err, postgres.ErrUnavailable)
}

func TestChangePercent(t *testing.T) {
	pct, ok := ChangePercent(dec("100"), dec("150"))
	assert.True(t, ok)
	assert.Equal(t, 50.0, pct)

	pct, ok = ChangePercent(dec("3"), dec("4"))
	assert.True(t, ok)
	assert.Equal(t, 33.33, pct)

	pct, ok = ChangePercent(decimal.Zero, dec("4"))
	assert.False(t, ok)
	assert.Equal(t, 0.0, pct)
}

func TestParseQuarter(t *testing.T) {
	q, err := ParseQuarter("")
	assert.NoError(t, err)
	assert.Equal(t, 0, q)

	q, err = ParseQuarter(" 3 ")
	assert.NoError(t, err)
	assert.Equal(t, 3, q)

	for _, bad := range []string{"0", "5", "two", "2a"} {
		_, err := ParseQuarter(bad)
		assert.ErrorIs(t, err, ErrInvalidQuarter, bad)
	}
}
