package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"budgetchef/internal/platform/postgres"
	"budgetchef/internal/price"
	"budgetchef/internal/recipe"
	"budgetchef/internal/user"
)

const requestTimeout = 5 * time.Second

// RecipeService defines the recipe searches served over HTTP.
type RecipeService interface {
	SearchByBudget(ctx context.Context, budget float64, quarter, page int) (*recipe.Page, error)
	SearchByAllergy(ctx context.Context, allergy string, quarter, page int) (*recipe.Page, error)
	ListAll(ctx context.Context, quarter, page int) (*recipe.Page, error)
	Detail(ctx context.Context, recipeID int64) (*recipe.Detail, error)
}

// PriceService defines the price lookups served over HTTP.
type PriceService interface {
	IngredientPrices(ctx context.Context, name string, quarter int) ([]*price.QuarterPrice, error)
	RecipePrices(ctx context.Context, name string, quarter int) ([]*price.RecipeQuarterCost, error)
	AnalyzeTrend(ctx context.Context, target price.Target) ([]*price.TrendPoint, error)
}

// UserService defines account registration and login.
type UserService interface {
	Register(ctx context.Context, username, password, allergy string) (*user.User, error)
	Login(ctx context.Context, username, password string) (*user.User, error)
}

// Handler handles HTTP requests.
type Handler struct {
	Recipes RecipeService
	Prices  PriceService
	Users   UserService
	Logger  *zap.Logger
}

// NewHandler creates a new Handler.
func NewHandler(recipes RecipeService, prices PriceService, users UserService, logger *zap.Logger) *Handler {
	return &Handler{Recipes: recipes, Prices: prices, Users: users, Logger: logger}
}

// Routes registers the handler's endpoints on r.
func (h *Handler) Routes(r gin.IRouter) {
	r.GET("/recipes", h.ListRecipes)
	r.GET("/recipes/budget", h.SearchByBudget)
	r.GET("/recipes/allergy", h.SearchByAllergy)
	r.GET("/recipes/:id", h.GetRecipe)
	r.GET("/prices/ingredients/:name", h.GetIngredientPrices)
	r.GET("/prices/recipes/:name", h.GetRecipePrices)
	r.GET("/trends", h.GetTrend)
	r.POST("/users", h.Register)
	r.POST("/sessions", h.Login)
}

// ListRecipes handles requests to page through every recipe of a quarter.
func (h *Handler) ListRecipes(c *gin.Context) {
	quarter, page, ok := searchParams(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result, err := h.Recipes.ListAll(ctx, quarter, page)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SearchByBudget handles requests for recipes within a budget.
func (h *Handler) SearchByBudget(c *gin.Context) {
	budget, err := strconv.ParseFloat(c.Query("budget"), 64)
	if err != nil {
		c.String(http.StatusBadRequest, fmt.Sprintf("invalid budget: %q", c.Query("budget")))
		return
	}
	quarter, page, ok := searchParams(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result, err := h.Recipes.SearchByBudget(ctx, budget, quarter, page)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SearchByAllergy handles requests for recipes free of the listed allergens.
func (h *Handler) SearchByAllergy(c *gin.Context) {
	quarter, page, ok := searchParams(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result, err := h.Recipes.SearchByAllergy(ctx, c.Query("allergy"), quarter, page)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetRecipe handles requests to retrieve a single recipe by id.
func (h *Handler) GetRecipe(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, fmt.Sprintf("invalid recipe id: %q", c.Param("id")))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	detail, err := h.Recipes.Detail(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GetIngredientPrices handles requests for an ingredient's quarterly prices.
func (h *Handler) GetIngredientPrices(c *gin.Context) {
	quarter, err := price.ParseQuarter(c.Query("quarter"))
	if err != nil {
		h.fail(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	prices, err := h.Prices.IngredientPrices(ctx, c.Param("name"), quarter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, prices)
}

// GetRecipePrices handles requests for a recipe's quarterly cost.
func (h *Handler) GetRecipePrices(c *gin.Context) {
	quarter, err := price.ParseQuarter(c.Query("quarter"))
	if err != nil {
		h.fail(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	costs, err := h.Prices.RecipePrices(ctx, c.Param("name"), quarter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, costs)
}

// GetTrend handles requests for the price trend of an ingredient or recipe.
func (h *Handler) GetTrend(c *gin.Context) {
	target := price.Target{Ingredient: c.Query("ingredient"), Recipe: c.Query("recipe")}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	points, err := h.Prices.AnalyzeTrend(ctx, target)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

type registerRequest struct {
	Username string `json:"user_name" binding:"required"`
	Password string `json:"password" binding:"required"`
	Allergy  string `json:"allergy"`
}

// Register handles account creation.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, fmt.Sprintf("invalid request body: %s", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	u, err := h.Users.Register(ctx, req.Username, req.Password, req.Allergy)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

type loginRequest struct {
	Username string `json:"user_name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles credential checks and returns the logged-in user.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, fmt.Sprintf("invalid request body: %s", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	u, err := h.Users.Login(ctx, req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// searchParams reads the quarter and page query parameters of a recipe
// search. page defaults to 1. It writes a 400 and reports false on bad input.
func searchParams(c *gin.Context) (quarter, page int, ok bool) {
	quarter, err := strconv.Atoi(c.Query("quarter"))
	if err != nil {
		c.String(http.StatusBadRequest, fmt.Sprintf("invalid quarter: %q", c.Query("quarter")))
		return 0, 0, false
	}
	page, err = strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		c.String(http.StatusBadRequest, fmt.Sprintf("invalid page: %q", c.Query("page")))
		return 0, 0, false
	}
	return quarter, page, true
}

// fail writes the status matching err's class.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		c.String(http.StatusRequestTimeout, fmt.Sprintf("request timed out after %s", requestTimeout))
	case errors.Is(err, recipe.ErrInvalidQuery),
		errors.Is(err, price.ErrInvalidQuarter),
		errors.Is(err, price.ErrInvalidTarget),
		errors.Is(err, user.ErrInvalidInput):
		c.String(http.StatusBadRequest, err.Error())
	case errors.Is(err, recipe.ErrRecipeNotFound):
		c.String(http.StatusNotFound, "Recipe not found")
	case errors.Is(err, user.ErrDuplicateUsername):
		c.String(http.StatusConflict, err.Error())
	case errors.Is(err, user.ErrInvalidCredentials):
		c.String(http.StatusUnauthorized, err.Error())
	case errors.Is(err, postgres.ErrUnavailable):
		c.String(http.StatusInternalServerError, "database error")
	default:
		h.Logger.Error("unhandled request error", zap.String("path", c.FullPath()), zap.Error(err))
		c.String(http.StatusInternalServerError, fmt.Sprintf("internal error: %s", err.Error()))
	}
}
