package recipe

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// NoIngredientInfo is rendered in place of an empty ingredient breakdown.
const NoIngredientInfo = "no ingredient info"

// PricePolicy decides how an ingredient without a price in the quarter is
// treated.
type PricePolicy int

const (
	// Strict leaves unpriced ingredients out of the cost and the breakdown.
	Strict PricePolicy = iota
	// ZeroFill prices unpriced ingredients at 0 and keeps them in the breakdown.
	ZeroFill
)

// Line is one ingredient of a recipe with its quarter price, if any.
type Line struct {
	RecipeID int64               `db:"recipe_id"`
	Name     string              `db:"ingredient_name"`
	Amount   decimal.Decimal     `db:"amount"`
	Price    decimal.NullDecimal `db:"price"`
}

// Cost is amount × price, zero when the line has no price.
func (l Line) Cost() decimal.Decimal {
	if !l.Price.Valid {
		return decimal.Zero
	}
	return l.Amount.Mul(l.Price.Decimal)
}

// String renders "onion (100g × 2.0원/g = 200.0원)".
func (l Line) String() string {
	return fmt.Sprintf("%s (%sg × %s원/g = %s원)",
		l.Name, l.Amount.String(), withFraction(l.Price.Decimal), withFraction(l.Cost()))
}

// RenderIngredients joins the breakdown of lines, one per line.
func RenderIngredients(lines []Line, policy PricePolicy) string {
	var b strings.Builder
	for _, l := range lines {
		if !l.Price.Valid && policy == Strict {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.String())
	}
	if b.Len() == 0 {
		return NoIngredientInfo
	}
	return b.String()
}

// TotalCost sums the cost of lines. Unpriced lines add nothing under either
// policy.
func TotalCost(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Cost())
	}
	return total
}

// withFraction keeps at least one fractional digit: 2 -> "2.0", 2.5 -> "2.5".
func withFraction(d decimal.Decimal) string {
	s := d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
