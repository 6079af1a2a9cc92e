package price

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for price data operations. A quarter of 0
// means every quarter.
type Store interface {
	IngredientPrices(ctx context.Context, ingredientName string, quarter int) ([]*QuarterPrice, error)
	RecipeLines(ctx context.Context, recipeName string, quarter int) ([]*RecipeLine, error)
	IngredientTrend(ctx context.Context, ingredientName string) ([]*TrendRow, error)
	RecipeTrend(ctx context.Context, recipeName string) ([]*TrendRow, error)
}

// PostgresStore implements Store for PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a new PostgresStore on an open connection.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// IngredientPrices retrieves the quarter prices of an ingredient by exact name.
func (s *PostgresStore) IngredientPrices(ctx context.Context, ingredientName string, quarter int) ([]*QuarterPrice, error) {
	args := []interface{}{ingredientName}
	query := `
		SELECT ip.quarter, ing.name AS ingredient_name, ip.price
		FROM ingredientprice ip
		JOIN ingredientname ing ON ing.ingredientid = ip.ingredientid
		WHERE ing.name = $1`
	if quarter != 0 {
		query += " AND ip.quarter = $2"
		args = append(args, quarter)
	}
	query += " ORDER BY ip.quarter"

	prices := []*QuarterPrice{}
	if err := s.db.SelectContext(ctx, &prices, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get ingredient prices: %w", err)
	}
	return prices, nil
}

// RecipeLines retrieves the priced ingredient lines of a recipe by exact
// name, ordered by quarter then ingredient. Ingredients without a price in a
// quarter do not appear for that quarter.
func (s *PostgresStore) RecipeLines(ctx context.Context, recipeName string, quarter int) ([]*RecipeLine, error) {
	args := []interface{}{recipeName}
	query := `
		SELECT
			ip.quarter,
			r.recipename AS recipe_name,
			r.recipeid AS recipe_id,
			ing.name AS ingredient_name,
			ri.amount,
			ip.price
		FROM recipe r
		JOIN recipeingredient_info ri ON ri.recipeid = r.recipeid
		JOIN ingredientprice ip ON ip.ingredientid = ri.ingredientid
		JOIN ingredientname ing ON ing.ingredientid = ri.ingredientid
		WHERE r.recipename = $1`
	if quarter != 0 {
		query += " AND ip.quarter = $2"
		args = append(args, quarter)
	}
	query += " ORDER BY ip.quarter, ing.name"

	lines := []*RecipeLine{}
	if err := s.db.SelectContext(ctx, &lines, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get recipe lines: %w", err)
	}
	return lines, nil
}

// IngredientTrend retrieves an ingredient's price per quarter alongside the
// price of the preceding quarter in the series. Ingredients sharing a name
// each get their own series.
func (s *PostgresStore) IngredientTrend(ctx context.Context, ingredientName string) ([]*TrendRow, error) {
	rows := []*TrendRow{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT
			ing.name,
			ip.quarter,
			ip.price AS value,
			LAG(ip.price) OVER (PARTITION BY ing.ingredientid ORDER BY ip.quarter) AS previous
		FROM ingredientprice ip
		JOIN ingredientname ing ON ing.ingredientid = ip.ingredientid
		WHERE ing.name = $1
		ORDER BY ing.ingredientid, ip.quarter`,
		ingredientName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get ingredient trend: %w", err)
	}
	return rows, nil
}

// RecipeTrend retrieves a recipe's total cost per quarter alongside the cost
// of the preceding quarter in the series, one series per recipe id.
func (s *PostgresStore) RecipeTrend(ctx context.Context, recipeName string) ([]*TrendRow, error) {
	rows := []*TrendRow{}
	err := s.db.SelectContext(ctx, &rows, `
		WITH recipe_prices AS (
			SELECT
				r.recipeid AS recipe_id,
				r.recipename AS name,
				ip.quarter,
				SUM(ri.amount * ip.price) AS total_price
			FROM recipe r
			JOIN recipeingredient_info ri ON ri.recipeid = r.recipeid
			JOIN ingredientprice ip ON ip.ingredientid = ri.ingredientid
			WHERE r.recipename = $1
			GROUP BY r.recipeid, r.recipename, ip.quarter
		)
		SELECT
			name,
			quarter,
			total_price AS value,
			LAG(total_price) OVER (PARTITION BY recipe_id ORDER BY quarter) AS previous
		FROM recipe_prices
		ORDER BY recipe_id, quarter`,
		recipeName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe trend: %w", err)
	}
	return rows, nil
}
