// Package console drives the interactive text menus over the recipe, price
// and user services.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"budgetchef/internal/price"
	"budgetchef/internal/recipe"
	"budgetchef/internal/user"
)

// errExit ends the session: the user chose to quit or input ran out.
var errExit = errors.New("exit")

// RecipeService defines the recipe operations the menus use.
type RecipeService interface {
	SearchByBudget(ctx context.Context, budget float64, quarter, page int) (*recipe.Page, error)
	SearchByAllergy(ctx context.Context, allergy string, quarter, page int) (*recipe.Page, error)
	ListAll(ctx context.Context, quarter, page int) (*recipe.Page, error)
	Detail(ctx context.Context, recipeID int64) (*recipe.Detail, error)
}

// PriceService defines the price operations the menus use.
type PriceService interface {
	IngredientPrices(ctx context.Context, name string, quarter int) ([]*price.QuarterPrice, error)
	RecipePrices(ctx context.Context, name string, quarter int) ([]*price.RecipeQuarterCost, error)
	AnalyzeTrend(ctx context.Context, target price.Target) ([]*price.TrendPoint, error)
}

// UserService defines registration and login.
type UserService interface {
	Register(ctx context.Context, username, password, allergy string) (*user.User, error)
	Login(ctx context.Context, username, password string) (*user.User, error)
}

// Console is one interactive session.
type Console struct {
	in      *bufio.Scanner
	out     io.Writer
	recipes RecipeService
	prices  PriceService
	users   UserService
	logger  *zap.Logger

	user *user.User
}

// New creates a Console reading commands from in and writing to out.
func New(in io.Reader, out io.Writer, recipes RecipeService, prices PriceService, users UserService, logger *zap.Logger) *Console {
	return &Console{
		in:      bufio.NewScanner(in),
		out:     out,
		recipes: recipes,
		prices:  prices,
		users:   users,
		logger:  logger,
	}
}

// Run shows the start menu until the user quits or input ends.
func (c *Console) Run(ctx context.Context) error {
	for {
		c.println("\n=== Budget Recipe Helper ===")
		c.println("1. Log in")
		c.println("2. Register")
		c.println("3. Quit")

		choice, err := c.prompt("Choose (1-3): ")
		if err != nil {
			return c.done(err)
		}

		switch choice {
		case "1":
			err = c.login(ctx)
		case "2":
			err = c.register(ctx)
		case "3":
			c.println("\nGoodbye.")
			return nil
		default:
			c.println("\nInvalid choice, try again.")
		}
		if err != nil {
			return c.done(err)
		}
	}
}

func (c *Console) done(err error) error {
	if errors.Is(err, errExit) {
		return nil
	}
	return err
}

func (c *Console) login(ctx context.Context) error {
	username, err := c.prompt("Username: ")
	if err != nil {
		return err
	}
	password, err := c.prompt("Password: ")
	if err != nil {
		return err
	}

	u, err := c.users.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			c.println("\nUnknown username or wrong password.")
			return nil
		}
		c.failed(err)
		return nil
	}

	c.user = u
	defer func() { c.user = nil }()
	c.printf("\nWelcome, %s!\n", u.Username)
	if u.Allergy != "" {
		c.printf("Allergies: %s\n", u.Allergy)
	}
	return c.mainMenu(ctx)
}

func (c *Console) register(ctx context.Context) error {
	username, err := c.prompt("Username: ")
	if err != nil {
		return err
	}
	password, err := c.prompt("Password: ")
	if err != nil {
		return err
	}
	allergy, err := c.prompt("Allergies (comma separated): ")
	if err != nil {
		return err
	}

	u, err := c.users.Register(ctx, username, password, allergy)
	switch {
	case errors.Is(err, user.ErrDuplicateUsername):
		c.println("\nThat username is already taken.")
	case errors.Is(err, user.ErrInvalidInput):
		c.println("\nUsername and password must not be empty.")
	case err != nil:
		c.failed(err)
	default:
		c.println("\nRegistration complete!")
		c.printf("Welcome, %s!\n", u.Username)
	}
	return nil
}

func (c *Console) mainMenu(ctx context.Context) error {
	for {
		c.println("\n=== Main Menu ===")
		c.println("1. Recipe search")
		c.println("2. Prices")
		c.println("3. Recipe detail")
		c.println("4. Log out")
		c.println("5. Quit")

		choice, err := c.prompt("Choose (1-5): ")
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			err = c.recipeMenu(ctx)
		case "2":
			err = c.priceMenu(ctx)
		case "3":
			err = c.showDetail(ctx)
		case "4":
			c.println("\nLogged out.")
			return nil
		case "5":
			c.println("\nGoodbye.")
			return errExit
		default:
			c.println("\nInvalid choice, try again.")
		}
		if err != nil {
			return err
		}
	}
}

func (c *Console) recipeMenu(ctx context.Context) error {
	for {
		c.println("\n=== Recipe Search ===")
		c.println("1. Search by budget")
		c.println("2. Search by allergy")
		c.println("3. All recipes")
		c.println("4. Back")

		choice, err := c.prompt("Choose (1-4): ")
		if err != nil {
			return err
		}

		var search func(page int) (*recipe.Page, error)
		switch choice {
		case "1":
			budget, err := c.promptFloat("Budget (won): ")
			if err != nil {
				return err
			}
			quarter, err := c.promptQuarter()
			if err != nil {
				return err
			}
			search = func(page int) (*recipe.Page, error) {
				return c.recipes.SearchByBudget(ctx, budget, quarter, page)
			}
		case "2":
			allergy, err := c.promptAllergy()
			if err != nil {
				return err
			}
			quarter, err := c.promptQuarter()
			if err != nil {
				return err
			}
			search = func(page int) (*recipe.Page, error) {
				return c.recipes.SearchByAllergy(ctx, allergy, quarter, page)
			}
		case "3":
			quarter, err := c.promptQuarter()
			if err != nil {
				return err
			}
			search = func(page int) (*recipe.Page, error) {
				return c.recipes.ListAll(ctx, quarter, page)
			}
		case "4":
			return nil
		default:
			c.println("\nInvalid choice, try again.")
			continue
		}

		if err := c.paginate(search); err != nil {
			return err
		}
	}
}

// promptAllergy asks for an allergy list; a blank answer uses the logged-in
// user's allergies.
func (c *Console) promptAllergy() (string, error) {
	var saved string
	if c.user != nil {
		saved = strings.Join(c.user.Allergies(), ", ")
	}
	label := "Allergies (comma separated): "
	if saved != "" {
		label = fmt.Sprintf("Allergies (comma separated, blank for %q): ", saved)
	}
	allergy, err := c.prompt(label)
	if err != nil {
		return "", err
	}
	if allergy == "" {
		allergy = saved
	}
	return allergy, nil
}

// paginate shows pages of search until the user declines more or there are
// no more pages.
func (c *Console) paginate(search func(page int) (*recipe.Page, error)) error {
	for page := 1; ; page++ {
		result, err := search(page)
		if err != nil {
			c.failed(err)
			return nil
		}
		if len(result.Recipes) == 0 {
			c.println("\nNo recipes found.")
			return nil
		}

		c.printPage(result)
		if !result.HasMore {
			return nil
		}
		more, err := c.promptYesNo("\nShow more results? (Y/N): ")
		if err != nil || !more {
			return err
		}
	}
}

func (c *Console) printPage(p *recipe.Page) {
	first := (p.CurrentPage-1)*recipe.PageSize + 1
	last := min(p.CurrentPage*recipe.PageSize, p.TotalCount)
	c.printf("\n=== Results %d-%d of %d ===\n", first, last, p.TotalCount)
	for _, r := range p.Recipes {
		c.printf("\n[%d] %s\n", r.RecipeID, r.Name)
		c.printf("Estimated cost: %s won\n", r.TotalCost.StringFixed(2))
		c.println(r.IngredientsDetail)
		c.println(strings.Repeat("-", 50))
	}
}

func (c *Console) priceMenu(ctx context.Context) error {
	for {
		c.println("\n=== Prices ===")
		c.println("1. Ingredient price")
		c.println("2. Recipe price")
		c.println("3. Ingredient price trend")
		c.println("4. Recipe price trend")
		c.println("5. Back")

		choice, err := c.prompt("Choose (1-5): ")
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			err = c.ingredientPrices(ctx)
		case "2":
			err = c.recipePrices(ctx)
		case "3", "4":
			err = c.trend(ctx, choice == "3")
		case "5":
			return nil
		default:
			c.println("\nInvalid choice, try again.")
		}
		if err != nil {
			return err
		}
	}
}

func (c *Console) ingredientPrices(ctx context.Context) error {
	name, err := c.prompt("Ingredient name: ")
	if err != nil {
		return err
	}
	quarter, err := c.promptOptionalQuarter()
	if err != nil {
		return err
	}

	prices, err := c.prices.IngredientPrices(ctx, name, quarter)
	if err != nil {
		c.failed(err)
		return nil
	}
	if len(prices) == 0 {
		c.printf("\nNo prices found for %s.\n", name)
		return nil
	}

	c.printf("\n=== %s ===\n", name)
	for _, p := range prices {
		c.printf("Q%d: %s won/g\n", p.Quarter, p.Price.StringFixed(2))
	}
	return nil
}

func (c *Console) recipePrices(ctx context.Context) error {
	name, err := c.prompt("Recipe name: ")
	if err != nil {
		return err
	}
	quarter, err := c.promptOptionalQuarter()
	if err != nil {
		return err
	}

	costs, err := c.prices.RecipePrices(ctx, name, quarter)
	if err != nil {
		c.failed(err)
		return nil
	}
	if len(costs) == 0 {
		c.printf("\nNo prices found for %s.\n", name)
		return nil
	}

	c.printf("\n=== %s ===\n", name)
	for _, rc := range costs {
		c.printf("\nQ%d total: %s won\n", rc.Quarter, rc.TotalCost.StringFixed(2))
		c.println(rc.IngredientsDetail)
	}
	return nil
}

func (c *Console) trend(ctx context.Context, ingredient bool) error {
	label := "Recipe name: "
	if ingredient {
		label = "Ingredient name: "
	}
	name, err := c.prompt(label)
	if err != nil {
		return err
	}

	target := price.Target{Recipe: name}
	if ingredient {
		target = price.Target{Ingredient: name}
	}
	points, err := c.prices.AnalyzeTrend(ctx, target)
	if err != nil {
		c.failed(err)
		return nil
	}
	if len(points) == 0 {
		c.printf("\nNo prices found for %s.\n", name)
		return nil
	}

	c.printf("\n=== Price trend: %s ===\n", name)
	for _, p := range points {
		change := fmt.Sprintf("%+.2f%%", p.ChangePercent)
		if p.Undefined {
			change = "n/a"
		}
		c.printf("Q%d: %s won (%s)\n", p.Quarter, p.Price.StringFixed(2), change)
	}
	return nil
}

func (c *Console) showDetail(ctx context.Context) error {
	id, err := c.promptInt("Recipe id: ", 1, 0)
	if err != nil {
		return err
	}

	d, err := c.recipes.Detail(ctx, int64(id))
	if err != nil {
		if errors.Is(err, recipe.ErrRecipeNotFound) {
			c.printf("\nNo recipe with id %d.\n", id)
			return nil
		}
		c.failed(err)
		return nil
	}

	c.printf("\n=== %s ===\n", d.Name)
	c.println("\nIngredients:")
	c.println(d.Ingredients)
	if len(d.CookingSteps) > 0 {
		c.println("\nSteps:")
		for i, step := range d.CookingSteps {
			c.printf("%d. %s\n", i+1, step)
		}
	}

	n := d.Nutrition
	if n.Calories != nil || n.Carbohydrate != nil || n.Protein != nil || n.Fat != nil {
		c.println("\nNutrition:")
		printNutrient(c, "Calories", n.Calories, "kcal")
		printNutrient(c, "Carbohydrate", n.Carbohydrate, "g")
		printNutrient(c, "Protein", n.Protein, "g")
		printNutrient(c, "Fat", n.Fat, "g")
	}
	return nil
}

func printNutrient(c *Console, label string, v *float64, unit string) {
	if v != nil {
		c.printf("%s: %.1f%s\n", label, *v, unit)
	}
}

// failed reports a service error and returns the user to the menu.
func (c *Console) failed(err error) {
	c.logger.Debug("console operation failed", zap.Error(err))
	c.printf("\nSomething went wrong: %v\n", err)
}

// prompt prints label and reads one trimmed line.
func (c *Console) prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return "", errExit
	}
	return strings.TrimSpace(c.in.Text()), nil
}

// promptInt re-prompts until the answer is an integer of at least lo and, when
// hi is positive, at most hi.
func (c *Console) promptInt(label string, lo, hi int) (int, error) {
	for {
		raw, err := c.prompt(label)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(raw)
		if err == nil && n >= lo && (hi <= 0 || n <= hi) {
			return n, nil
		}
		if hi > 0 {
			c.printf("Enter a number from %d to %d.\n", lo, hi)
		} else {
			c.printf("Enter a number of at least %d.\n", lo)
		}
	}
}

func (c *Console) promptFloat(label string) (float64, error) {
	for {
		raw, err := c.prompt(label)
		if err != nil {
			return 0, err
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err == nil && f >= 0 && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return f, nil
		}
		c.println("Enter a non-negative amount.")
	}
}

func (c *Console) promptQuarter() (int, error) {
	for {
		raw, err := c.prompt("Quarter (1-4): ")
		if err != nil {
			return 0, err
		}
		q, err := strconv.Atoi(raw)
		if err == nil && recipe.ValidateQuarter(q) == nil {
			return q, nil
		}
		c.println("Enter a number from 1 to 4.")
	}
}

// promptOptionalQuarter accepts a blank answer as every quarter.
func (c *Console) promptOptionalQuarter() (int, error) {
	for {
		raw, err := c.prompt("Quarter (1-4, blank for all): ")
		if err != nil {
			return 0, err
		}
		q, err := price.ParseQuarter(raw)
		if err == nil {
			return q, nil
		}
		c.println("Enter a number from 1 to 4, or leave blank.")
	}
}

func (c *Console) promptYesNo(label string) (bool, error) {
	for {
		raw, err := c.prompt(label)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(raw) {
		case "y":
			return true, nil
		case "n":
			return false, nil
		}
		c.println("Enter Y or N.")
	}
}

func (c *Console) println(s string) {
	fmt.Fprintln(c.out, s)
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
