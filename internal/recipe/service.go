package recipe

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"budgetchef/internal/platform/postgres"
)

var (
	// ErrRecipeNotFound is returned when no recipe has the requested id.
	ErrRecipeNotFound = errors.New("recipe not found")
	// ErrInvalidQuery is returned for out-of-range search parameters.
	ErrInvalidQuery = errors.New("invalid recipe query")
)

var validate = validator.New()

type searchQuery struct {
	Budget  float64 `validate:"gte=0"`
	Quarter int     `validate:"min=1,max=4"`
	Page    int     `validate:"min=1"`
}

// Service answers recipe searches and recipe detail lookups.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a new Service.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// ValidateQuarter reports whether quarter is a fiscal quarter.
func ValidateQuarter(quarter int) error {
	return checkQuery(searchQuery{Quarter: quarter, Page: 1})
}

// SearchByBudget returns the recipes costing at most budget in quarter,
// cheapest first.
func (s *Service) SearchByBudget(ctx context.Context, budget float64, quarter, page int) (*Page, error) {
	if math.IsInf(budget, 0) || math.IsNaN(budget) {
		return nil, fmt.Errorf("%w: budget must be a finite amount", ErrInvalidQuery)
	}
	if err := checkQuery(searchQuery{Budget: budget, Quarter: quarter, Page: page}); err != nil {
		return nil, err
	}
	return s.search(ctx, Filter{
		Kind:    FilterBudget,
		Quarter: quarter,
		Budget:  decimal.NewFromFloat(budget),
	}, page, Strict)
}

// SearchByAllergy returns the recipes none of whose ingredients contain any
// entry of the comma separated allergy list, ordered by name. Ingredients
// without a price in quarter are costed at 0.
func (s *Service) SearchByAllergy(ctx context.Context, allergy string, quarter, page int) (*Page, error) {
	if err := checkQuery(searchQuery{Quarter: quarter, Page: page}); err != nil {
		return nil, err
	}
	return s.search(ctx, Filter{
		Kind:      FilterAllergy,
		Quarter:   quarter,
		Allergies: SplitAllergies(allergy),
	}, page, ZeroFill)
}

// ListAll returns every recipe priced for quarter, ordered by name.
func (s *Service) ListAll(ctx context.Context, quarter, page int) (*Page, error) {
	if err := checkQuery(searchQuery{Quarter: quarter, Page: page}); err != nil {
		return nil, err
	}
	return s.search(ctx, Filter{Kind: FilterNone, Quarter: quarter}, page, Strict)
}

func (s *Service) search(ctx context.Context, f Filter, page int, policy PricePolicy) (*Page, error) {
	f.Limit = PageSize
	f.Offset = (page - 1) * PageSize

	recipes, err := s.store.SearchRecipes(ctx, f)
	if err != nil {
		return nil, s.storeError("recipe search failed", f, err)
	}

	total, err := s.store.CountRecipes(ctx, f)
	if err != nil {
		return nil, s.storeError("recipe count failed", f, err)
	}

	ids := make([]int64, 0, len(recipes))
	for _, r := range recipes {
		ids = append(ids, r.RecipeID)
	}
	lines, err := s.store.IngredientLines(ctx, f.Quarter, ids)
	if err != nil {
		return nil, s.storeError("ingredient lookup failed", f, err)
	}

	byRecipe := make(map[int64][]Line, len(recipes))
	for _, l := range lines {
		byRecipe[l.RecipeID] = append(byRecipe[l.RecipeID], l)
	}
	for _, r := range recipes {
		r.IngredientsDetail = RenderIngredients(byRecipe[r.RecipeID], policy)
	}

	return &Page{
		Recipes:     recipes,
		TotalCount:  total,
		CurrentPage: page,
		HasMore:     total > page*PageSize,
	}, nil
}

// Detail returns the aggregate view of one recipe.
func (s *Service) Detail(ctx context.Context, recipeID int64) (*Detail, error) {
	d, err := s.store.GetDetail(ctx, recipeID)
	if err != nil {
		s.logger.Error("recipe detail failed", zap.Int64("recipe_id", recipeID), zap.Error(err))
		return nil, postgres.Unavailable(err)
	}
	if d == nil {
		return nil, ErrRecipeNotFound
	}
	return d, nil
}

func (s *Service) storeError(msg string, f Filter, err error) error {
	s.logger.Error(msg,
		zap.Stringer("filter", f.Kind),
		zap.Int("quarter", f.Quarter),
		zap.Int("offset", f.Offset),
		zap.Error(err),
	)
	return postgres.Unavailable(err)
}

func checkQuery(q searchQuery) error {
	if err := validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s must satisfy %s=%s", ErrInvalidQuery,
				verrs[0].Field(), verrs[0].Tag(), verrs[0].Param())
		}
		return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return nil
}
