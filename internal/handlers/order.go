package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/sprout/internal/cart"
	"github.com/example/sprout/internal/middleware"
	"github.com/example/sprout/internal/models"
	"github.com/example/sprout/internal/services"
	"github.com/example/sprout/internal/store"
	"github.com/example/sprout/internal/utils"
)

// OrderHandler manages order and return endpoints.
type OrderHandler struct {
	db       *gorm.DB
	orders   store.OrderStore
	telegram *services.TelegramService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB, orders store.OrderStore, telegram *services.TelegramService) *OrderHandler {
	return &OrderHandler{db: db, orders: orders, telegram: telegram}
}

type orderItemRequest struct {
	ProductID string  `json:"product_id"`
	VariantID string  `json:"variant_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type createOrderRequest struct {
	Items           []orderItemRequest `json:"items"`
	ShippingAddress string             `json:"shipping_address"`
	PaymentMethod   string             `json:"payment_method"`
	TotalAmount     float64            `json:"total_amount"`
}

// storeError maps order-engine sentinels onto HTTP statuses. Stock
// conflicts get their own status so the client can offer "re-check
// availability" instead of "fix your input".
func storeError(err error) error {
	switch {
	case errors.Is(err, store.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInsufficientStock):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, store.ErrInvalidTransition):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return err
}

// CreateOrder places an order from the submitted cart snapshot. The
// request's price and total fields are untrusted display data; the store
// re-prices every line from the catalog.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	// Rebuild the snapshot through the cart model so duplicate
	// (product, variant) lines from a stale client merge into one.
	snapshot := cart.New()
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid product_id")
		}
		variantID, err := uuid.Parse(item.VariantID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid variant_id")
		}
		if item.Quantity <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "quantity must be positive")
		}
		snapshot.Add(productID, variantID, item.Price, item.Quantity)
	}

	cmd := store.PlaceOrderCommand{
		UserID:          userID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	}
	for _, line := range snapshot.Lines() {
		cmd.Lines = append(cmd.Lines, store.OrderLine{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
		})
	}

	order, err := h.orders.PlaceOrder(c.Context(), cmd)
	if err != nil {
		return storeError(err)
	}

	if h.telegram != nil {
		go h.notifyNewOrder(*order, userID)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": order})
}

func (h *OrderHandler) notifyNewOrder(order models.Order, userID uuid.UUID) {
	notification := services.OrderNotification{
		OrderNumber:   order.OrderNumber,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: order.PaymentMethod,
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err == nil {
		notification.UserName = user.Name
		notification.UserEmail = user.Email
	}

	for _, item := range order.Items {
		line := services.OrderItemNotification{
			Quantity: item.Quantity,
			Price:    item.Price,
		}
		if item.Product != nil {
			line.Name = item.Product.Name
		}
		if item.Variant != nil {
			line.Color = item.Variant.Color
			line.Size = item.Variant.Size
		}
		notification.ItemCount += item.Quantity
		notification.Items = append(notification.Items, line)
	}

	if err := h.telegram.NotifyNewOrder(notification); err != nil {
		log.Printf("[Order] Telegram notification failed for order %s: %v", order.OrderNumber, err)
	}
}

// ListMyOrders returns orders for the authenticated user.
func (h *OrderHandler) ListMyOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	q := store.ListOrdersQuery{
		UserID: &userID,
		Status: models.OrderStatus(c.Query("status")),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	}

	orders, total, err := h.orders.ListOrders(c.Context(), q)
	if err != nil {
		return storeError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetOrder returns a single order. Admins can see any order; customers
// only their own, with foreign orders reported as not found.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	order, err := h.orders.GetOrder(c.Context(), id, userID, middleware.IsAdminRequest(c))
	if err != nil {
		return storeError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// ListOrders returns all orders for the admin back-office.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	q := store.ListOrdersQuery{
		Status: models.OrderStatus(c.Query("status")),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	}

	orders, total, err := h.orders.ListOrders(c.Context(), q)
	if err != nil {
		return storeError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

type updateOrderRequest struct {
	Status     string `json:"status"`
	TrackingID string `json:"tracking_id"`
	Carrier    string `json:"carrier"`
}

// UpdateOrder applies an admin status transition with optional shipment
// tracking details.
func (h *OrderHandler) UpdateOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.orders.UpdateOrderStatus(c.Context(), id, store.UpdateOrderStatusCommand{
		Status:     models.OrderStatus(req.Status),
		TrackingID: req.TrackingID,
		Carrier:    req.Carrier,
	})
	if err != nil {
		return storeError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type returnItemRequest struct {
	OrderItemID string `json:"order_item_id"`
	Quantity    int    `json:"quantity"`
	Reason      string `json:"reason"`
}

type createReturnRequest struct {
	Reason string              `json:"reason"`
	Items  []returnItemRequest `json:"items"`
}

// CreateReturn opens a return request against one of the caller's
// delivered orders.
func (h *OrderHandler) CreateReturn(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req createReturnRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	cmd := store.CreateReturnCommand{
		OrderID: orderID,
		UserID:  userID,
		Reason:  req.Reason,
	}
	for _, item := range req.Items {
		itemID, err := uuid.Parse(item.OrderItemID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid order_item_id")
		}
		cmd.Lines = append(cmd.Lines, store.ReturnLine{
			OrderItemID: itemID,
			Quantity:    item.Quantity,
			Reason:      item.Reason,
		})
	}

	ret, err := h.orders.CreateReturn(c.Context(), cmd)
	if err != nil {
		return storeError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": ret})
}

type updateReturnRequest struct {
	Status     string `json:"status"`
	AdminNotes string `json:"admin_notes"`
}

// UpdateReturn approves or rejects a pending return request.
func (h *OrderHandler) UpdateReturn(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateReturnRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	ret, err := h.orders.UpdateReturnStatus(c.Context(), id, store.UpdateReturnStatusCommand{
		Status:     models.ReturnStatus(req.Status),
		AdminNotes: req.AdminNotes,
	})
	if err != nil {
		return storeError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": ret})
}

// ListReturns returns all return requests for the admin back-office.
func (h *OrderHandler) ListReturns(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.ReturnRequest{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var returns []models.ReturnRequest
	if err := query.Preload("Items.OrderItem").
		Preload("Order").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&returns).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    returns,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}
