package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/sprout/internal/config"
	"github.com/example/sprout/internal/database"
	"github.com/example/sprout/internal/models"
	"github.com/example/sprout/internal/routes"
	"github.com/example/sprout/internal/utils"
)

const testJWTSecret = "test-secret"

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		JWTSecret:    testJWTSecret,
		TokenExpires: time.Hour,
	}

	app := fiber.New()
	routes.Register(app, db, cfg)

	return app, db
}

func createUser(t *testing.T, db *gorm.DB, role models.Role) models.User {
	t.Helper()
	hash, err := utils.HashPassword("secret123")
	require.NoError(t, err)
	user := models.User{
		Name:         "Test User",
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: hash,
		Role:         role,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func tokenFor(t *testing.T, user models.User) string {
	t.Helper()
	token, err := utils.GenerateToken(testJWTSecret, user.ID, time.Hour)
	require.NoError(t, err)
	return token
}

func createProduct(t *testing.T, db *gorm.DB, price float64, stock int) models.Product {
	t.Helper()
	product := models.Product{
		Name:     "Rainbow Raincoat",
		Price:    price,
		Category: "outerwear",
		AgeGroup: "2-4",
		Variants: []models.ProductVariant{{Color: "yellow", Size: "104", Stock: stock}},
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

// doRequest runs a JSON request through the app, optionally authenticated.
func doRequest(t *testing.T, app *fiber.App, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}
