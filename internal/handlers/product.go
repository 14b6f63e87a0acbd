package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/sprout/internal/models"
	"github.com/example/sprout/internal/utils"
)

// ProductHandler manages catalog endpoints.
type ProductHandler struct {
	db *gorm.DB
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(db *gorm.DB) *ProductHandler {
	return &ProductHandler{db: db}
}

// ListProducts returns paginated products with nested variants and
// optional category/age-group/color/size filters.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Product{})

	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	if ageGroup := c.Query("age_group"); ageGroup != "" {
		query = query.Where("age_group = ?", ageGroup)
	}

	// Color and size live on variants, so filtering needs a join. The
	// join can match a product more than once, hence the distinct below.
	color := c.Query("color")
	size := c.Query("size")
	joined := color != "" || size != ""
	if joined {
		query = query.Joins("JOIN product_variants ON product_variants.product_id = products.id")
		if color != "" {
			query = query.Where("product_variants.color = ?", color)
		}
		if size != "" {
			query = query.Where("product_variants.size = ?", size)
		}
	}

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q := "%" + search + "%"
		query = query.Where("products.name LIKE ? OR products.description LIKE ?", q, q)
	}

	if c.Query("featured") == "true" {
		query = query.Where("featured = ?", true)
	}

	var total int64
	countQuery := query
	if joined {
		countQuery = countQuery.Distinct("products.id")
	}
	if err := countQuery.Count(&total).Error; err != nil {
		return err
	}

	findQuery := query.Preload("Variants")
	if joined {
		findQuery = findQuery.Distinct("products.*")
	}

	var products []models.Product
	if err := findQuery.
		Limit(pg.Limit).Offset(pg.Offset).
		Order("products.created_at desc").
		Find(&products).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    products,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetProduct loads a product with its variants.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var product models.Product
	if err := h.db.Preload("Variants").First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

type variantRequest struct {
	Color string `json:"color"`
	Size  string `json:"size"`
	Stock int    `json:"stock"`
	Image string `json:"image"`
}

type productRequest struct {
	Name        string           `json:"name"`
	Price       float64          `json:"price"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	AgeGroup    string           `json:"age_group"`
	Image       string           `json:"image"`
	Featured    bool             `json:"featured"`
	Variants    []variantRequest `json:"variants"`
}

func buildProductFromRequest(req productRequest) (models.Product, error) {
	if req.Name == "" {
		return models.Product{}, errors.New("name is required")
	}
	if req.Price < 0 {
		return models.Product{}, errors.New("price must not be negative")
	}

	product := models.Product{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		Category:    req.Category,
		AgeGroup:    req.AgeGroup,
		Image:       req.Image,
		Featured:    req.Featured,
	}

	for _, v := range req.Variants {
		if v.Stock < 0 {
			return models.Product{}, errors.New("variant stock must not be negative")
		}
		product.Variants = append(product.Variants, models.ProductVariant{
			Color: v.Color,
			Size:  v.Size,
			Stock: v.Stock,
			Image: v.Image,
		})
	}

	return product, nil
}

// CreateProduct handles admin product creation with its variant set.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	product, err := buildProductFromRequest(req)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := h.db.Create(&product).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

// UpdateProduct updates a product and replaces its variant set wholesale.
// Variants not resubmitted are gone; order items keep their own price and
// quantity snapshots, so historical orders are unaffected.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var existing models.Product
	if err := h.db.First(&existing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	product, err := buildProductFromRequest(req)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	product.ID = existing.ID
	product.CreatedAt = existing.CreatedAt
	for i := range product.Variants {
		product.Variants[i].ProductID = existing.ID
	}

	if err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", product.ID).Delete(&models.ProductVariant{}).Error; err != nil {
			return err
		}

		if err := tx.Model(&existing).Omit("ID", "CreatedAt").Updates(map[string]interface{}{
			"name":        product.Name,
			"price":       product.Price,
			"description": product.Description,
			"category":    product.Category,
			"age_group":   product.AgeGroup,
			"image":       product.Image,
			"featured":    product.Featured,
		}).Error; err != nil {
			return err
		}

		if len(product.Variants) > 0 {
			if err := tx.Create(&product.Variants).Error; err != nil {
				return err
			}
		}

		return nil
	}); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

// DeleteProduct removes a product and its variants.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var product models.Product
	if err := h.db.First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	if err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductVariant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Product{}, "id = ?", id).Error
	}); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "product removed"})
}
