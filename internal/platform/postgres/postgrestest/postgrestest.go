//go:build integration

// Package postgrestest starts a throwaway PostgreSQL container with the
// schema migrated and a small reference catalog loaded.
package postgrestest

import (
	"context"
	"fmt"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"budgetchef/internal/catalog"
	"budgetchef/internal/platform/postgres"
)

const (
	image    = "postgres:15-alpine"
	database = "budgetchef_test"
	username = "test_user"
	password = "test_password"
)

// Catalog is the reference data loaded into every test database.
//
// Quarter 1 totals: Soup 200 (garlic is unpriced), Milk Pudding 650,
// Plain Rice 1000.004, Flour Cake 500 and nine Rice Bowls at 100 each.
// Saffron has prices in Q1, Q2 and Q4 only; a second ingredient also named
// saffron is priced in Q3 only. Water costs 0 in Q1.
var Catalog = fstest.MapFS{
	"Recipe.csv": file("recipeID,recipeName\n" +
		"1,Soup\n2,Milk Pudding\n3,Plain Rice\n4,Flour Cake\n" +
		"5,Rice Bowl 05\n6,Rice Bowl 06\n7,Rice Bowl 07\n8,Rice Bowl 08\n9,Rice Bowl 09\n" +
		"10,Rice Bowl 10\n11,Rice Bowl 11\n12,Rice Bowl 12\n13,Rice Bowl 13\n"),
	"IngredientName.csv": file("ingredientID,name\n" +
		"10,onion\n11,garlic\n12,Buttermilk\n13,sugar\n14,rice\n15,salt\n" +
		"16,flour 100%\n17,saffron\n18,water\n19,saffron\n"),
	"IngredientPrice.csv": file("ingredientID,quarter,price\n" +
		"10,1,2.00\n10,2,2.50\n" +
		"12,1,3.00\n13,1,1.00\n14,1,10.00\n15,1,0.40\n16,1,5.00\n" +
		"17,1,100\n17,2,150\n17,4,120\n" +
		"18,1,0\n18,2,5\n" +
		"19,3,80\n"),
	"RecipeIngredient_Info.csv": file("recipeID,ingredientID,amount\n" +
		"1,10,100\n1,11,10\n" +
		"2,12,200\n2,13,50\n" +
		"3,14,100\n3,15,0.01\n" +
		"4,16,100\n" +
		"5,14,10\n6,14,10\n7,14,10\n8,14,10\n9,14,10\n10,14,10\n11,14,10\n12,14,10\n13,14,10\n"),
	"cooking_method.csv": file("recipe_id,manual01,manual02,manual03,manual04,manual05,manual06\n" +
		"1,Boil water,,Add onion,  ,,Serve hot\n"),
	"recipe_nutrition.csv": file("recipe_id,calories,carbohydrate,protein,fat\n" +
		"1,120.5,,3,\n"),
}

func file(s string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(s)}
}

// Open starts a PostgreSQL container, migrates it and loads Catalog. The
// container is terminated when the test ends. Open skips the test in short
// mode.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       database,
				"POSTGRES_USER":     username,
				"POSTGRES_PASSWORD": password,
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		username, password, host, port.Port(), database)
	db, err := postgres.Connect(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	migrator, err := postgres.NewMigrator(db, logger)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())

	_, err = catalog.NewLoader(db, logger).Load(ctx, Catalog)
	require.NoError(t, err)
	return db
}
