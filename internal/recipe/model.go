package recipe

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PageSize is the number of recipes per search result page.
const PageSize = 10

// Summary represents one recipe in a search result page, priced for the
// quarter that was searched.
type Summary struct {
	RecipeID          int64           `json:"recipe_id" db:"recipe_id"`
	Name              string          `json:"recipe_name" db:"recipe_name"`
	TotalCost         decimal.Decimal `json:"total_price" db:"total_cost"`
	IngredientsDetail string          `json:"ingredients_detail" db:"-"`
}

// Page is one page of search results.
type Page struct {
	Recipes     []*Summary `json:"recipes"`
	TotalCount  int        `json:"total_count"`
	CurrentPage int        `json:"current_page"`
	HasMore     bool       `json:"has_more"`
}

// Nutrition holds per-recipe nutrition facts. A nil field is unknown.
type Nutrition struct {
	Calories     *float64 `json:"calories,omitempty" db:"calories"`
	Carbohydrate *float64 `json:"carbohydrate,omitempty" db:"carbohydrate"`
	Protein      *float64 `json:"protein,omitempty" db:"protein"`
	Fat          *float64 `json:"fat,omitempty" db:"fat"`
}

// Detail is the aggregate view of a single recipe.
type Detail struct {
	RecipeID     int64     `json:"recipe_id"`
	Name         string    `json:"recipe_name"`
	CookingSteps []string  `json:"cooking_steps"`
	Ingredients  string    `json:"ingredients"`
	Nutrition    Nutrition `json:"nutrition"`
}

// SplitAllergies parses a comma separated allergy list into lower-cased,
// trimmed, non-empty entries.
func SplitAllergies(allergy string) []string {
	var out []string
	for _, a := range strings.Split(allergy, ",") {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}
