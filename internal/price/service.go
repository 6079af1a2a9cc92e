package price

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"budgetchef/internal/platform/postgres"
	"budgetchef/internal/recipe"
)

var (
	// ErrInvalidTarget is returned when a trend target names neither or both
	// of an ingredient and a recipe.
	ErrInvalidTarget = errors.New("trend target must name exactly one of ingredient or recipe")
	// ErrInvalidQuarter is returned for a quarter outside 0..4.
	ErrInvalidQuarter = errors.New("quarter must be between 1 and 4, or 0 for all")
)

var hundred = decimal.NewFromInt(100)

// Service looks up and analyzes ingredient and recipe prices.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a new Service.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// IngredientPrices returns the prices of the named ingredient, one per
// quarter, or only for quarter when it is not 0.
func (s *Service) IngredientPrices(ctx context.Context, name string, quarter int) ([]*QuarterPrice, error) {
	if quarter < 0 || quarter > 4 {
		return nil, ErrInvalidQuarter
	}
	prices, err := s.store.IngredientPrices(ctx, name, quarter)
	if err != nil {
		s.logger.Error("ingredient price lookup failed",
			zap.String("ingredient", name), zap.Int("quarter", quarter), zap.Error(err))
		return nil, postgres.Unavailable(err)
	}
	return prices, nil
}

// RecipePrices returns the total cost of the named recipe per quarter, or
// only for quarter when it is not 0, with the ingredient breakdown.
func (s *Service) RecipePrices(ctx context.Context, name string, quarter int) ([]*RecipeQuarterCost, error) {
	if quarter < 0 || quarter > 4 {
		return nil, ErrInvalidQuarter
	}
	lines, err := s.store.RecipeLines(ctx, name, quarter)
	if err != nil {
		s.logger.Error("recipe price lookup failed",
			zap.String("recipe", name), zap.Int("quarter", quarter), zap.Error(err))
		return nil, postgres.Unavailable(err)
	}

	costs := []*RecipeQuarterCost{}
	var group []recipe.Line
	flush := func(q int, recipeName string) {
		if len(group) == 0 {
			return
		}
		costs = append(costs, &RecipeQuarterCost{
			Quarter:           q,
			RecipeName:        recipeName,
			TotalCost:         recipe.TotalCost(group).Round(2),
			IngredientsDetail: recipe.RenderIngredients(group, recipe.Strict),
		})
		group = nil
	}

	for i, l := range lines {
		if i > 0 && lines[i-1].Quarter != l.Quarter {
			flush(lines[i-1].Quarter, lines[i-1].RecipeName)
		}
		group = append(group, l.Line)
	}
	if len(lines) > 0 {
		last := lines[len(lines)-1]
		flush(last.Quarter, last.RecipeName)
	}
	return costs, nil
}

// AnalyzeTrend returns the quarter-by-quarter values of the target with the
// percent change against the preceding quarter in the series.
func (s *Service) AnalyzeTrend(ctx context.Context, target Target) ([]*TrendPoint, error) {
	var (
		rows []*TrendRow
		err  error
	)
	switch {
	case target.Ingredient != "" && target.Recipe == "":
		rows, err = s.store.IngredientTrend(ctx, target.Ingredient)
	case target.Recipe != "" && target.Ingredient == "":
		rows, err = s.store.RecipeTrend(ctx, target.Recipe)
	default:
		return nil, ErrInvalidTarget
	}
	if err != nil {
		s.logger.Error("trend analysis failed",
			zap.String("ingredient", target.Ingredient), zap.String("recipe", target.Recipe), zap.Error(err))
		return nil, postgres.Unavailable(err)
	}

	points := make([]*TrendPoint, 0, len(rows))
	for _, r := range rows {
		p := &TrendPoint{Name: r.Name, Quarter: r.Quarter, Price: r.Value}
		if r.Previous.Valid {
			pct, ok := ChangePercent(r.Previous.Decimal, r.Value)
			p.ChangePercent = pct
			p.Undefined = !ok
		}
		points = append(points, p)
	}
	return points, nil
}

// ChangePercent is (current-previous)/previous*100, rounded to two decimals.
// It reports false when previous is zero.
func ChangePercent(previous, current decimal.Decimal) (float64, bool) {
	if previous.IsZero() {
		return 0, false
	}
	pct, _ := current.Sub(previous).Div(previous).Mul(hundred).Round(2).Float64()
	return pct, true
}

// ParseQuarter validates an optional quarter argument; "" means all quarters.
func ParseQuarter(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	q, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || q < 1 || q > 4 {
		return 0, ErrInvalidQuarter
	}
	return q, nil
}
