package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"budgetchef/internal/platform/postgres"
	"budgetchef/internal/price"
	"budgetchef/internal/recipe"
	"budgetchef/internal/user"
)

type searchCall struct {
	kind    string
	budget  float64
	allergy string
	quarter int
	page    int
}

// fakeRecipes serves pages from a fixed list of summaries.
type fakeRecipes struct {
	summaries []*recipe.Summary
	detail    *recipe.Detail
	err       error
	calls     []searchCall
}

func (f *fakeRecipes) page(call searchCall) (*recipe.Page, error) {
	f.calls = append(f.calls, call)
	if f.err != nil {
		return nil, f.err
	}
	start := min((call.page-1)*recipe.PageSize, len(f.summaries))
	end := min(start+recipe.PageSize, len(f.summaries))
	return &recipe.Page{
		Recipes:     f.summaries[start:end],
		TotalCount:  len(f.summaries),
		CurrentPage: call.page,
		HasMore:     len(f.summaries) > call.page*recipe.PageSize,
	}, nil
}

func (f *fakeRecipes) SearchByBudget(ctx context.Context, budget float64, quarter, page int) (*recipe.Page, error) {
	return f.page(searchCall{kind: "budget", budget: budget, quarter: quarter, page: page})
}

func (f *fakeRecipes) SearchByAllergy(ctx context.Context, allergy string, quarter, page int) (*recipe.Page, error) {
	return f.page(searchCall{kind: "allergy", allergy: allergy, quarter: quarter, page: page})
}

func (f *fakeRecipes) ListAll(ctx context.Context, quarter, page int) (*recipe.Page, error) {
	return f.page(searchCall{kind: "all", quarter: quarter, page: page})
}

func (f *fakeRecipes) Detail(ctx context.Context, recipeID int64) (*recipe.Detail, error) {
	if f.detail == nil || f.detail.RecipeID != recipeID {
		return nil, recipe.ErrRecipeNotFound
	}
	return f.detail, nil
}

type fakePrices struct {
	prices  []*price.QuarterPrice
	trend   []*price.TrendPoint
	quarter int
	target  price.Target
}

func (f *fakePrices) IngredientPrices(ctx context.Context, name string, quarter int) ([]*price.QuarterPrice, error) {
	f.quarter = quarter
	return f.prices, nil
}

func (f *fakePrices) RecipePrices(ctx context.Context, name string, quarter int) ([]*price.RecipeQuarterCost, error) {
	f.quarter = quarter
	return []*price.RecipeQuarterCost{{
		Quarter:           1,
		RecipeName:        name,
		TotalCost:         decimal.RequireFromString("200.00"),
		IngredientsDetail: "onion (100g × 2.0원/g = 200.0원)",
	}}, nil
}

func (f *fakePrices) AnalyzeTrend(ctx context.Context, target price.Target) ([]*price.TrendPoint, error) {
	f.target = target
	return f.trend, nil
}

type fakeUsers struct {
	users map[string]*user.User
}

func (f *fakeUsers) Register(ctx context.Context, username, password, allergy string) (*user.User, error) {
	if username == "" {
		return nil, user.ErrInvalidInput
	}
	if _, ok := f.users[username]; ok {
		return nil, user.ErrDuplicateUsername
	}
	u := &user.User{ID: int64(len(f.users) + 1), Username: username, PasswordHash: password, Allergy: allergy}
	f.users[username] = u
	return u, nil
}

func (f *fakeUsers) Login(ctx context.Context, username, password string) (*user.User, error) {
	u, ok := f.users[username]
	if !ok || u.PasswordHash != password {
		return nil, user.ErrInvalidCredentials
	}
	return u, nil
}

type session struct {
	recipes *fakeRecipes
	prices  *fakePrices
	users   *fakeUsers
	out     bytes.Buffer
}

func newSession() *session {
	return &session{
		recipes: &fakeRecipes{},
		prices:  &fakePrices{},
		users: &fakeUsers{users: map[string]*user.User{
			"alice": {ID: 1, Username: "alice", PasswordHash: "pw", Allergy: "milk"},
		}},
	}
}

// run feeds lines to a new console and returns its output.
func (s *session) run(t *testing.T, lines ...string) string {
	t.Helper()
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	c := New(in, &s.out, s.recipes, s.prices, s.users, zap.NewNop())
	require.NoError(t, c.Run(context.Background()))
	return s.out.String()
}

func summaries(n int) []*recipe.Summary {
	out := make([]*recipe.Summary, n)
	for i := range out {
		out[i] = &recipe.Summary{RecipeID: int64(i + 1), Name: "Recipe", TotalCost: decimal.NewFromInt(1000)}
	}
	return out
}

func TestRun_QuitAndEOF(t *testing.T) {
	out := newSession().run(t, "3")
	assert.Contains(t, out, "Goodbye.")

	out = newSession().run(t)
	assert.Contains(t, out, "Budget Recipe Helper")
}

func TestRun_LoginFailure(t *testing.T) {
	out := newSession().run(t, "1", "alice", "wrong", "3")
	assert.Contains(t, out, "Unknown username or wrong password.")
}

func TestRun_Register(t *testing.T) {
	s := newSession()
	out := s.run(t, "2", "bob", "secret", "egg, shrimp", "2", "bob", "other", "", "3")

	assert.Contains(t, out, "Registration complete!")
	assert.Contains(t, out, "That username is already taken.")
	assert.Equal(t, "egg, shrimp", s.users.users["bob"].Allergy)
	assert.Len(t, s.users.users, 2)
}

func TestBudgetSearch_RepromptsAndPaginates(t *testing.T) {
	s := newSession()
	s.recipes.summaries = summaries(15)

	out := s.run(t,
		"1", "alice", "pw", // log in
		"1", "1", // recipe search, by budget
		"cheap", "5000", // bad budget is re-prompted
		"9", "x", "2", // bad quarters are re-prompted
		"maybe", "y", // show more
		"4", "5",
	)

	require.Len(t, s.recipes.calls, 2)
	assert.Equal(t, searchCall{kind: "budget", budget: 5000, quarter: 2, page: 1}, s.recipes.calls[0])
	assert.Equal(t, 2, s.recipes.calls[1].page)

	assert.Contains(t, out, "Enter a non-negative amount.")
	assert.Contains(t, out, "Enter a number from 1 to 4.")
	assert.Contains(t, out, "Enter Y or N.")
	assert.Contains(t, out, "=== Results 1-10 of 15 ===")
	assert.Contains(t, out, "=== Results 11-15 of 15 ===")
	assert.Contains(t, out, "Estimated cost: 1000.00 won")
}

func TestBudgetSearch_RepromptsNonFiniteBudget(t *testing.T) {
	s := newSession()
	s.recipes.summaries = summaries(1)

	out := s.run(t,
		"1", "alice", "pw",
		"1", "1",
		"inf", "NaN", "-Inf", "1e400", "2500.5",
		"1",
		"4", "5",
	)

	require.Len(t, s.recipes.calls, 1)
	assert.Equal(t, searchCall{kind: "budget", budget: 2500.5, quarter: 1, page: 1}, s.recipes.calls[0])
	assert.Equal(t, 4, strings.Count(out, "Enter a non-negative amount."))
	assert.Contains(t, out, "Estimated cost: 1000.00 won")
	assert.Contains(t, out, "Goodbye.")
}

func TestAllergySearch_DefaultsToUserAllergies(t *testing.T) {
	s := newSession()
	s.recipes.summaries = summaries(3)

	s.run(t, "1", "alice", "pw", "1", "2", "", "1", "4", "5")

	require.Len(t, s.recipes.calls, 1)
	assert.Equal(t, searchCall{kind: "allergy", allergy: "milk", quarter: 1, page: 1}, s.recipes.calls[0])
}

func TestAllergySearch_NormalizesSavedAllergies(t *testing.T) {
	s := newSession()
	s.users.users["carol"] = &user.User{ID: 2, Username: "carol", PasswordHash: "pw", Allergy: " Milk ,, Peanut "}
	s.recipes.summaries = summaries(1)

	out := s.run(t, "1", "carol", "pw", "1", "2", "", "3", "4", "5")

	require.Len(t, s.recipes.calls, 1)
	assert.Equal(t, searchCall{kind: "allergy", allergy: "milk, peanut", quarter: 3, page: 1}, s.recipes.calls[0])
	assert.Contains(t, out, `blank for "milk, peanut"`)
}

func TestSearch_StoreFailureReturnsToMenu(t *testing.T) {
	s := newSession()
	s.recipes.err = postgres.Unavailable(errors.New("connection refused"))

	out := s.run(t, "1", "alice", "pw", "1", "3", "1", "4", "5")
	assert.Contains(t, out, "Something went wrong")
	assert.Contains(t, out, "Goodbye.")
}

func TestSearch_NoResults(t *testing.T) {
	s := newSession()

	out := s.run(t, "1", "alice", "pw", "1", "3", "1", "4", "5")
	assert.Contains(t, out, "No recipes found.")
}

func TestPriceMenu(t *testing.T) {
	s := newSession()
	s.prices.prices = []*price.QuarterPrice{{Quarter: 1, IngredientName: "onion", Price: decimal.NewFromInt(2)}}
	s.prices.trend = []*price.TrendPoint{
		{Name: "onion", Quarter: 1, Price: decimal.NewFromInt(100)},
		{Name: "onion", Quarter: 2, Price: decimal.NewFromInt(150), ChangePercent: 50},
		{Name: "onion", Quarter: 3, Price: decimal.NewFromInt(120), ChangePercent: -20},
	}

	out := s.run(t,
		"1", "alice", "pw", "2",
		"1", "onion", "7", "", // bad quarter, then all quarters
		"2", "Soup", "1",
		"3", "onion",
		"5", "5",
	)

	assert.Contains(t, out, "Q1: 2.00 won/g")
	assert.Contains(t, out, "Q1 total: 200.00 won")
	assert.Contains(t, out, "onion (100g × 2.0원/g = 200.0원)")
	assert.Contains(t, out, "Q2: 150.00 won (+50.00%)")
	assert.Contains(t, out, "Q3: 120.00 won (-20.00%)")
	assert.Equal(t, 1, s.prices.quarter)
	assert.Equal(t, price.Target{Ingredient: "onion"}, s.prices.target)
}

func TestShowDetail(t *testing.T) {
	s := newSession()
	calories := 250.0
	s.recipes.detail = &recipe.Detail{
		RecipeID:     3,
		Name:         "Kimchi Stew",
		CookingSteps: []string{"Boil water", "Add salt"},
		Ingredients:  "kimchi, pork",
		Nutrition:    recipe.Nutrition{Calories: &calories},
	}

	out := s.run(t, "1", "alice", "pw", "3", "three", "3", "3", "4", "4", "3")

	assert.Contains(t, out, "=== Kimchi Stew ===")
	assert.Contains(t, out, "1. Boil water\n2. Add salt")
	assert.Contains(t, out, "Calories: 250.0kcal")
	assert.NotContains(t, out, "Protein")
	assert.Contains(t, out, "No recipe with id 4.")
	assert.Contains(t, out, "Logged out.")
}
