package recipe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// FilterKind selects the predicate of a recipe search.
type FilterKind int

const (
	// FilterNone lists every recipe.
	FilterNone FilterKind = iota
	// FilterBudget keeps recipes whose quarter cost is within the budget.
	FilterBudget
	// FilterAllergy drops recipes using an ingredient matching an allergy.
	FilterAllergy
)

func (k FilterKind) String() string {
	switch k {
	case FilterBudget:
		return "budget"
	case FilterAllergy:
		return "allergy"
	default:
		return "all"
	}
}

// Filter describes one page of a recipe search.
type Filter struct {
	Kind      FilterKind
	Quarter   int
	Budget    decimal.Decimal
	Allergies []string
	Limit     int
	Offset    int
}

// Store defines the interface for recipe data operations.
type Store interface {
	SearchRecipes(ctx context.Context, f Filter) ([]*Summary, error)
	CountRecipes(ctx context.Context, f Filter) (int, error)
	IngredientLines(ctx context.Context, quarter int, recipeIDs []int64) ([]Line, error)
	GetDetail(ctx context.Context, recipeID int64) (*Detail, error)
}

// PostgresStore implements Store for PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a new PostgresStore on an open connection.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// recipeCosts prices every recipe for quarter $1. priced_lines counts the
// ingredients that have a price in that quarter. total_cost is left
// unrounded so the budget predicate sees the exact sum; only the projected
// column is rounded.
const recipeCosts = `
	WITH recipe_costs AS (
		SELECT
			r.recipeid AS recipe_id,
			r.recipename AS recipe_name,
			COALESCE(SUM(ri.amount * ip.price), 0) AS total_cost,
			COUNT(ip.price) AS priced_lines
		FROM recipe r
		LEFT JOIN recipeingredient_info ri ON ri.recipeid = r.recipeid
		LEFT JOIN ingredientprice ip ON ip.ingredientid = ri.ingredientid AND ip.quarter = $1
		GROUP BY r.recipeid, r.recipename
	)`

// where builds the predicate shared by the page and count queries.
func (f Filter) where() (string, []interface{}) {
	args := []interface{}{f.Quarter}
	switch f.Kind {
	case FilterBudget:
		args = append(args, f.Budget)
		return " WHERE rc.priced_lines > 0 AND rc.total_cost <= $2", args
	case FilterAllergy:
		if len(f.Allergies) == 0 {
			return "", args
		}
		args = append(args, pq.Array(likePatterns(f.Allergies)))
		return `
	WHERE NOT EXISTS (
		SELECT 1
		FROM recipeingredient_info ri2
		JOIN ingredientname ing ON ing.ingredientid = ri2.ingredientid
		WHERE ri2.recipeid = rc.recipe_id
		AND LOWER(ing.name) LIKE ANY($2)
	)`, args
	}
	return "", args
}

func (f Filter) orderBy() string {
	if f.Kind == FilterBudget {
		return " ORDER BY rc.total_cost ASC, rc.recipe_id ASC"
	}
	return " ORDER BY rc.recipe_name ASC, rc.recipe_id ASC"
}

// SearchRecipes returns one page of recipes matching f.
func (s *PostgresStore) SearchRecipes(ctx context.Context, f Filter) ([]*Summary, error) {
	where, args := f.where()
	query := recipeCosts + `
	SELECT rc.recipe_id, rc.recipe_name, CAST(rc.total_cost AS DECIMAL(12,2)) AS total_cost
	FROM recipe_costs rc` + where + f.orderBy()

	paramCount := len(args) + 1
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", paramCount, paramCount+1)
	args = append(args, f.Limit, f.Offset)

	recipes := []*Summary{}
	if err := s.db.SelectContext(ctx, &recipes, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search recipes: %w", err)
	}
	return recipes, nil
}

// CountRecipes counts every recipe matching f, ignoring Limit and Offset.
func (s *PostgresStore) CountRecipes(ctx context.Context, f Filter) (int, error) {
	where, args := f.where()
	query := recipeCosts + `
	SELECT COUNT(*)
	FROM recipe_costs rc` + where

	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count recipes: %w", err)
	}
	return count, nil
}

// IngredientLines returns the ingredients of the given recipes with their
// price in quarter, ordered by recipe then ingredient name. Price is NULL
// for ingredients without a price in that quarter.
func (s *PostgresStore) IngredientLines(ctx context.Context, quarter int, recipeIDs []int64) ([]Line, error) {
	if len(recipeIDs) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT ri.recipeid AS recipe_id, ing.name AS ingredient_name, ri.amount, ip.price
		FROM recipeingredient_info ri
		JOIN ingredientname ing ON ing.ingredientid = ri.ingredientid
		LEFT JOIN ingredientprice ip ON ip.ingredientid = ri.ingredientid AND ip.quarter = $1
		WHERE ri.recipeid = ANY($2)
		ORDER BY ri.recipeid, ing.name`,
		quarter, pq.Array(recipeIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get ingredient lines: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.StructScan(&l); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return lines, nil
}

type detailRow struct {
	RecipeID    int64          `db:"recipe_id"`
	Name        string         `db:"recipe_name"`
	Manual01    sql.NullString `db:"manual01"`
	Manual02    sql.NullString `db:"manual02"`
	Manual03    sql.NullString `db:"manual03"`
	Manual04    sql.NullString `db:"manual04"`
	Manual05    sql.NullString `db:"manual05"`
	Manual06    sql.NullString `db:"manual06"`
	Ingredients string         `db:"ingredients"`
	Nutrition
}

// GetDetail retrieves the aggregate view of a recipe. It returns nil, nil
// when the recipe does not exist.
func (s *PostgresStore) GetDetail(ctx context.Context, recipeID int64) (*Detail, error) {
	var row detailRow
	err := s.db.GetContext(ctx, &row, `
		SELECT
			r.recipeid AS recipe_id,
			r.recipename AS recipe_name,
			cm.manual01, cm.manual02, cm.manual03,
			cm.manual04, cm.manual05, cm.manual06,
			COALESCE(string_agg(DISTINCT ing.name, ', ' ORDER BY ing.name), '') AS ingredients,
			rn.calories, rn.carbohydrate, rn.protein, rn.fat
		FROM recipe r
		LEFT JOIN cooking_method cm ON cm.recipe_id = r.recipeid
		LEFT JOIN recipeingredient_info ri ON ri.recipeid = r.recipeid
		LEFT JOIN ingredientname ing ON ing.ingredientid = ri.ingredientid
		LEFT JOIN recipe_nutrition rn ON rn.recipe_id = r.recipeid
		WHERE r.recipeid = $1
		GROUP BY r.recipeid, r.recipename,
			cm.manual01, cm.manual02, cm.manual03, cm.manual04, cm.manual05, cm.manual06,
			rn.calories, rn.carbohydrate, rn.protein, rn.fat`,
		recipeID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Recipe not found
		}
		return nil, fmt.Errorf("failed to get recipe detail: %w", err)
	}

	d := &Detail{
		RecipeID:     row.RecipeID,
		Name:         row.Name,
		CookingSteps: cookingSteps(row.Manual01, row.Manual02, row.Manual03, row.Manual04, row.Manual05, row.Manual06),
		Ingredients:  row.Ingredients,
		Nutrition:    row.Nutrition,
	}
	if d.Ingredients == "" {
		d.Ingredients = NoIngredientInfo
	}
	return d, nil
}

// cookingSteps keeps the non-blank steps in order.
func cookingSteps(manuals ...sql.NullString) []string {
	steps := []string{}
	for _, m := range manuals {
		if m.Valid && strings.TrimSpace(m.String) != "" {
			steps = append(steps, m.String)
		}
	}
	return steps
}

// likePatterns turns allergy entries into escaped, lower-cased %entry%
// patterns.
func likePatterns(allergies []string) []string {
	escaper := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	patterns := make([]string, 0, len(allergies))
	for _, a := range allergies {
		patterns = append(patterns, "%"+escaper.Replace(strings.ToLower(a))+"%")
	}
	return patterns
}
