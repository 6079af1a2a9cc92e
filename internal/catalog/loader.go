// Package catalog bulk loads the recipe and price reference tables from CSV
// files.
package catalog

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type kind int

const (
	integer kind = iota
	text
	optionalText
	amount
	optionalAmount
)

type column struct {
	header string
	kind   kind
}

// table describes one CSV file and the table it loads into. Columns are
// listed in insert order.
type table struct {
	file     string
	optional bool
	insert   string
	columns  []column
}

// Tables are loaded in this order so foreign keys resolve.
var tables = []table{
	{
		file:    "Recipe.csv",
		insert:  "INSERT INTO recipe (recipeid, recipename) VALUES ($1, $2)",
		columns: []column{{"recipeid", integer}, {"recipename", text}},
	},
	{
		file:    "IngredientName.csv",
		insert:  "INSERT INTO ingredientname (ingredientid, name) VALUES ($1, $2)",
		columns: []column{{"ingredientid", integer}, {"name", text}},
	},
	{
		file:    "IngredientPrice.csv",
		insert:  "INSERT INTO ingredientprice (ingredientid, quarter, price) VALUES ($1, $2, $3)",
		columns: []column{{"ingredientid", integer}, {"quarter", integer}, {"price", amount}},
	},
	{
		file:    "RecipeIngredient_Info.csv",
		insert:  "INSERT INTO recipeingredient_info (recipeid, ingredientid, amount) VALUES ($1, $2, $3)",
		columns: []column{{"recipeid", integer}, {"ingredientid", integer}, {"amount", amount}},
	},
	{
		file:     "cooking_method.csv",
		optional: true,
		insert: `INSERT INTO cooking_method (recipe_id, manual01, manual02, manual03, manual04, manual05, manual06)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		columns: []column{
			{"recipe_id", integer},
			{"manual01", optionalText}, {"manual02", optionalText}, {"manual03", optionalText},
			{"manual04", optionalText}, {"manual05", optionalText}, {"manual06", optionalText},
		},
	},
	{
		file:     "recipe_nutrition.csv",
		optional: true,
		insert: `INSERT INTO recipe_nutrition (recipe_id, calories, carbohydrate, protein, fat)
			VALUES ($1, $2, $3, $4, $5)`,
		columns: []column{
			{"recipe_id", integer},
			{"calories", optionalAmount}, {"carbohydrate", optionalAmount},
			{"protein", optionalAmount}, {"fat", optionalAmount},
		},
	},
}

// Stats maps each loaded file to its row count.
type Stats map[string]int

// Loader writes CSV reference data into the database.
type Loader struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewLoader creates a new Loader.
func NewLoader(db *sqlx.DB, logger *zap.Logger) *Loader {
	return &Loader{db: db, logger: logger}
}

// Load reads the reference CSV files from fsys and inserts them in a single
// transaction. Any error rolls the whole load back.
func (l *Loader) Load(ctx context.Context, fsys fs.FS) (stats Stats, err error) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin load: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				l.logger.Error("failed to roll back load", zap.Error(rbErr))
			}
		}
	}()

	stats = make(Stats, len(tables))
	for _, t := range tables {
		f, err := fsys.Open(t.file)
		if err != nil {
			if t.optional && errors.Is(err, fs.ErrNotExist) {
				l.logger.Info("skipping optional file", zap.String("file", t.file))
				continue
			}
			return nil, fmt.Errorf("failed to open %s: %w", t.file, err)
		}

		n, err := loadTable(ctx, tx, t, f)
		f.Close()
		if err != nil {
			return nil, err
		}
		stats[t.file] = n
		l.logger.Info("loaded table", zap.String("file", t.file), zap.Int("rows", n))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit load: %w", err)
	}
	return stats, nil
}

func loadTable(ctx context.Context, tx *sqlx.Tx, t table, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read %s header: %w", t.file, err)
	}
	index, err := columnIndex(t, header)
	if err != nil {
		return 0, err
	}

	rows := 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read %s: %w", t.file, err)
		}
		line, _ := cr.FieldPos(0)

		args := make([]interface{}, len(t.columns))
		for i, c := range t.columns {
			v, err := parse(c.kind, strings.TrimSpace(record[index[i]]))
			if err != nil {
				return 0, fmt.Errorf("%s:%d: column %s: %w", t.file, line, c.header, err)
			}
			args[i] = v
		}

		if _, err := tx.ExecContext(ctx, t.insert, args...); err != nil {
			return 0, fmt.Errorf("%s:%d: failed to insert: %w", t.file, line, err)
		}
		rows++
	}
}

// columnIndex maps each of t's columns to its position in header. Headers
// match case-insensitively.
func columnIndex(t table, header []string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		pos[h] = i
	}

	index := make([]int, len(t.columns))
	for i, c := range t.columns {
		p, ok := pos[c.header]
		if !ok {
			return nil, fmt.Errorf("%s: missing column %s", t.file, c.header)
		}
		index[i] = p
	}
	return index, nil
}

func parse(k kind, raw string) (interface{}, error) {
	switch k {
	case integer:
		// Spreadsheet exports write whole ids as "12.0".
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil || n != float64(int64(n)) {
			return nil, fmt.Errorf("invalid integer %q", raw)
		}
		return int64(n), nil
	case text:
		if raw == "" {
			return nil, errors.New("empty value")
		}
		return raw, nil
	case optionalText:
		return sql.NullString{String: raw, Valid: raw != ""}, nil
	case amount:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", raw)
		}
		return d, nil
	case optionalAmount:
		if raw == "" {
			return decimal.NullDecimal{}, nil
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", raw)
		}
		return decimal.NewNullDecimal(d), nil
	}
	return nil, fmt.Errorf("unknown column kind %d", k)
}
