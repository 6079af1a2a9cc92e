package price

import (
	"github.com/shopspring/decimal"

	"budgetchef/internal/recipe"
)

// QuarterPrice is the unit price of an ingredient in one quarter.
type QuarterPrice struct {
	Quarter        int             `json:"quarter" db:"quarter"`
	IngredientName string          `json:"ingredient_name" db:"ingredient_name"`
	Price          decimal.Decimal `json:"price" db:"price"`
}

// RecipeQuarterCost is the total cost of a recipe in one quarter.
type RecipeQuarterCost struct {
	Quarter           int             `json:"quarter"`
	RecipeName        string          `json:"recipe_name"`
	TotalCost         decimal.Decimal `json:"total_price"`
	IngredientsDetail string          `json:"ingredients_detail"`
}

// RecipeLine is a priced ingredient line of a named recipe.
type RecipeLine struct {
	Quarter    int    `db:"quarter"`
	RecipeName string `db:"recipe_name"`
	recipe.Line
}

// Target names what a trend is computed for. Exactly one field is set.
type Target struct {
	Ingredient string `json:"ingredient,omitempty"`
	Recipe     string `json:"recipe,omitempty"`
}

// TrendRow is a quarter value with the value of the preceding quarter
// present in the series.
type TrendRow struct {
	Name     string              `db:"name"`
	Quarter  int                 `db:"quarter"`
	Value    decimal.Decimal     `db:"value"`
	Previous decimal.NullDecimal `db:"previous"`
}

// TrendPoint is one quarter of a price trend. Undefined is set when the
// preceding value was zero and no percentage can be given.
type TrendPoint struct {
	Name          string          `json:"name"`
	Quarter       int             `json:"quarter"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent float64         `json:"price_change_percent"`
	Undefined     bool            `json:"undefined,omitempty"`
}
