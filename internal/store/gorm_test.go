package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/sprout/internal/database"
	"github.com/example/sprout/internal/models"
	"github.com/example/sprout/internal/store"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A unique shared-cache DSN keeps every pooled connection on the
	// same in-memory database while isolating tests from each other.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	return db
}

func seedUser(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	user := models.User{Name: "Test Customer", Email: uuid.NewString() + "@example.com"}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedProduct(t *testing.T, db *gorm.DB, price float64, stocks ...int) models.Product {
	t.Helper()
	product := models.Product{
		Name:     "Dino Hoodie",
		Price:    price,
		Category: "hoodies",
		AgeGroup: "4-6",
	}
	for i, stock := range stocks {
		product.Variants = append(product.Variants, models.ProductVariant{
			Color: "green",
			Size:  fmt.Sprintf("size-%d", i),
			Stock: stock,
		})
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func variantStock(t *testing.T, db *gorm.DB, variantID uuid.UUID) int {
	t.Helper()
	var variant models.ProductVariant
	require.NoError(t, db.First(&variant, "id = ?", variantID).Error)
	return variant.Stock
}

func placeOrder(t *testing.T, s store.OrderStore, userID uuid.UUID, product models.Product, variantIdx, qty int) *models.Order {
	t.Helper()
	order, err := s.PlaceOrder(context.Background(), store.PlaceOrderCommand{
		UserID:          userID,
		ShippingAddress: "12 Meadow Lane",
		PaymentMethod:   "card",
		Lines: []store.OrderLine{{
			ProductID: product.ID,
			VariantID: product.Variants[variantIdx].ID,
			Quantity:  qty,
		}},
	})
	require.NoError(t, err)
	return order
}

func TestPlaceOrderHappyPath(t *testing.T) {
	db := newTestDB(t)
	s := store.NewGormOrderStore(db)
	user := seedUser(t, db)
	product := seedProduct(t, db, 20.00, 10)

	order := placeOrder(t, s, user.ID, product, 0, 3)

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, 60.00, order.TotalAmount)
	assert.NotEmpty(t, order.OrderNumber)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.Equal(t, 20.00, order.Items[0].Price)
	require.NotNil(t, order.Items[0].Product)
	assert.Equal(t, "Dino Hoodie", order.Items[0].Product.Name)

	assert.Equal(t, 7, variantStock(t, db, product.Variants[0].ID))
}

func TestPlaceOrderIgnoresClientPrices(t *testing.T) {
	// The command carries no price fields at all; totals always come
	// from the catalog.
	db := newTestDB(t)
	s := store.NewGormOrderStore(db)
	user := seedUser(t, db)
	product := seedProduct(t, db, 15.50, 5)

	order := placeOrder(t, s, user.ID, product, 0, 2)
	assert.Equal(t, 31.00, order.TotalAmount)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	db := newTestDB(t)
	s := store.NewGormOrderStore(db)
	user := seedUser(t, db)

	_, err := s.PlaceOrder(context.Background(), store.PlaceOrderCommand{
		UserID:          user.ID,
		ShippingAddress: "12 Meadow Lane",
	})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestPlaceOrderNonPositiveQuantity(t *testing.T) {
	db := newTestDB(t)
	s := store.NewGormOrderStore(db)
	user := seedUser(t, db)
	product := seedProduct(t, db, 10.00, 5)

	_, err := s.PlaceOrder(context.Background(), store.PlaceOrderCommand{
		UserID:          user.ID,
		ShippingAddress: "12 Meadow Lane",
		Lines: []store.OrderLine{{
			ProductID: product.ID,
			VariantID: product.Variants[0].ID,
			Quantity:  0,
		}},
	})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestPlaceOrderUnknownVariant(t *testing.T) {
	db := newTestDB(t)
	s := store.NewGormOrderStore(db)
	user := seedUser(t, db)
	product := seedProduct(t, db, 10.00, 5)

	_, err := s.PlaceOrder(context.Background(), store.PlaceOrderCommand{
		UserID:          user.ID,
		ShippingAddress: "12 Meadow Lane",
		Lines: []store.OrderLine{{
			ProductID: product.ID,
			VariantID: uuid.New(),
			Quantity:  1,
		}},
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPlaceOrderInsufficientStockRollsBack(t *testing.T) {
	db := newTestDB(t)
	s := store.NewGormOrderStore(db)
	user := seedUser(t, db)
	product := seedProduct(t, db, 10.00, 10, 0)

	_, err := s.PlaceOrder(context.Background(), store.PlaceOrderCommand{
		UserID:          user.ID,
		ShippingAddress: "12 Meadow Lane",
		Lines: []store.OrderLine{
			{ProductID: product.ID, VariantID: product.Variants[0].ID, Quantity: 2},
			{ProductID: product.ID, VariantID: product.Variants[1].ID, Quantity: 1},
		},
	})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	// Nothing from the failed order may be visible: no order, no items,
	// and the first variant's decrement undone.
	var orders, items int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, db.Model(&models.OrderItem{}).Count(&items).Error)
	assert.Zero(t, orders)
	assert.Zero(t, items)
	assert.Equal(t, 10, variantStock(t, db, product.Variants[0].ID))
	assert.Equal(t, 0, variantStock(t, db, product.Variants[1].ID))
}

func TestPlaceOrderStockConflict(t *testing.T) {
	// Two submissions race for the last unit. The conditional update
	// guarantees the second one sees zero affected rows and aborts.
	db := newTestDB(t)
	s := store.NewGormOrderStore(db)
	user := seedUser(t, db)
	product := seedProduct(t, db, 25.00, 1)

	first := placeOrder(t, s, user.ID, product, 0, 1)
	assert.Equal(t, 25.00, first.TotalAmount)

	_, err := s.PlaceOrder(context.Background(), store.PlaceOrderCommand{
		UserID:          user.ID,
		ShippingAddress: "12 Meadow Lane",
		Lines: []store.OrderLine{{
			ProductID: product.ID,
			VariantID: product.Variants[0].ID,
			Quantity:  1,
		}},
	})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	assert.Equal(t, 0, variantStock(t, db, product.Variants[0].ID))

	var orders int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orders).Error)
	assert.Equal(t, int64(1), orders)
}

func TestGetOrderHidesOtherUsers(t *testing.T) {
	db := newTestDB(t)
	s := store.NewGormOrderStore(db)
	owner := seedUser(t, db)
	stranger := seedUser(t, db)
	product := seedProduct(t, db, 10.00, 5)

	order := placeOrder(t, s, owner.ID, product, 0, 1)

	_, err := s.GetOrder(context.Background(), order.ID, stranger.ID, false)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// An admin sees it regardless of ownership.
	got, err := s.GetOrder(context.Background(), order.ID, stranger.ID, true)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}

func TestGetOrderIdempotentRead(t *testing.T) {
	db := newTestDB(t)
	s := store.NewGormOrderStore(db)
	user := seedUser(t, db)
	product := seedProduct(t, db, 10.00, 5)

	order := placeOrder(t, s, user.ID, product, 0, 2)

	first, err := s.GetOrder(context.Background(), order.ID, user.ID, false)
	require.NoError(t, err)
	second, err := s.GetOrder(context.Background(), order.ID, user.ID, false)
	require.NoError(t, err)

	assert.Equal(t, first.TotalAmount, second.TotalAmount)
	assert.Equal(t, first.Status, second.Status)
	assert.Len(t, second.Items, len(first.Items))
}

func TestListOrdersScopes(t *testing.T) {
	db := newTestDB(t)
	s := store.NewGormOrderStore(db)
	alice := seedUser(t, db)
	bob := seedUser(t, db)
	product := seedProduct(t, db, 10.00, 20)

	placeOrder(t, s, alice.ID, product, 0, 1)
	placeOrder(t, s, alice.ID, product, 0, 1)
	placeOrder(t, s, bob.ID, product, 0, 1)

	mine, total, err := s.ListOrders(context.Background(), store.ListOrdersQuery{UserID: &alice.ID, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, mine, 2)

	all, total, err := s.ListOrders(context.Background(), store.ListOrdersQuery{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)
}

func TestUpdateOrderStatusTransitionGuard(t *testing.T) {
	db := newTestDB(t)
	s := store.NewGormOrderStore(db)
	user := seedUser(t, db)
	product := seedProduct(t, db, 10.00, 5)

	order := placeOrder(t, s, user.ID, product, 0, 1)

	_, err := s.UpdateOrderStatus(context.Background(), order.ID, store.UpdateOrderStatusCommand{
		Status: models.OrderStatusDelivered,
	})
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	updated, err := s.UpdateOrderStatus(context.Background(), order.ID, store.UpdateOrderStatusCommand{
		Status:     models.OrderStatusProcessing,
		TrackingID: "TRK-1",
		Carrier:    "dhl",
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, updated.Status)
	assert.Equal(t, "TRK-1", updated.TrackingID)
	assert.Equal(t, "dhl", updated.Carrier)
}

func TestUpdateOrderStatusUnknownOrder(t *testing.T) {
	db := newTestDB(t)
	s := store.NewGormOrderStore(db)

	_, err := s.UpdateOrderStatus(context.Background(), uuid.New(), store.UpdateOrderStatusCommand{
		Status: models.OrderStatusProcessing,
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCancellationRestocks(t *testing.T) {
	db := newTestDB(t)
	s := store.NewGormOrderStore(db)
	user := seedUser(t, db)
	product := seedProduct(t, db, 10.00, 10)

	order := placeOrder(t, s, user.ID, product, 0, 3)
	assert.Equal(t, 7, variantStock(t, db, product.Variants[0].ID))

	cancelled, err := s.UpdateOrderStatus(context.Background(), order.ID, store.UpdateOrderStatusCommand{
		Status: models.OrderStatusCancelled,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, variantStock(t, db, product.Variants[0].ID))
}

func deliverOrder(t *testing.T, s store.OrderStore, orderID uuid.UUID) {
	t.Helper()
	for _, status := range []models.OrderStatus{
		models.OrderStatusProcessing,
		models.OrderStatusShipped,
		models.OrderStatusDelivered,
	} {
		_, err := s.UpdateOrderStatus(context.Background(), orderID, store.UpdateOrderStatusCommand{Status: status})
		require.NoError(t, err)
	}
}

func TestCreateReturnFlow(t *testing.T) {
	db := newTestDB(t)
	s := store.NewGormOrderStore(db)
	user := seedUser(t, db)
	product := seedProduct(t, db, 10.00, 10)

	order := placeOrder(t, s, user.ID, product, 0, 3)
	deliverOrder(t, s, order.ID)

	ret, err := s.CreateReturn(context.Background(), store.CreateReturnCommand{
		OrderID: order.ID,
		UserID:  user.ID,
		Reason:  "too small",
		Lines: []store.ReturnLine{{
			OrderItemID: order.Items[0].ID,
			Quantity:    2,
			Reason:      "wrong size",
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReturnStatusPending, ret.Status)
	require.Len(t, ret.Items, 1)
	assert.Equal(t, 2, ret.Items[0].Quantity)

	updated, err := s.GetOrder(context.Background(), order.ID, user.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReturnRequested, updated.Status)
}

func TestCreateReturnRejectsExcessQuantity(t *testing.T) {
	db := newTestDB(t)
	s := store.NewGormOrderStore(db)
	user := seedUser(t, db)
	product := seedProduct(t, db, 10.00, 10)

	order := placeOrder(t, s, user.ID, product, 0, 2)
	deliverOrder(t, s, order.ID)

	_, err := s.CreateReturn(context.Background(), store.CreateReturnCommand{
		OrderID: order.ID,
		UserID:  user.ID,
		Lines: []store.ReturnLine{{
			OrderItemID: order.Items[0].ID,
			Quantity:    5,
		}},
	})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestCreateReturnHidesForeignOrders(t *testing.T) {
	db := newTestDB(t)
	s := store.NewGormOrderStore(db)
	owner := seedUser(t, db)
	stranger := seedUser(t, db)
	product := seedProduct(t, db, 10.00, 10)

	order := placeOrder(t, s, owner.ID, product, 0, 1)
	deliverOrder(t, s, order.ID)

	_, err := s.CreateReturn(context.Background(), store.CreateReturnCommand{
		OrderID: order.ID,
		UserID:  stranger.ID,
		Lines: []store.ReturnLine{{
			OrderItemID: order.Items[0].ID,
			Quantity:    1,
		}},
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateReturnRequiresDelivered(t *testing.T) {
	db := newTestDB(t)
	s := store.NewGormOrderStore(db)
	user := seedUser(t, db)
	product := seedProduct(t, db, 10.00, 10)

	order := placeOrder(t, s, user.ID, product, 0, 1)

	_, err := s.CreateReturn(context.Background(), store.CreateReturnCommand{
		OrderID: order.ID,
		UserID:  user.ID,
		Lines: []store.ReturnLine{{
			OrderItemID: order.Items[0].ID,
			Quantity:    1,
		}},
	})
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
}

func TestApproveReturnRestocks(t *testing.T) {
	db := newTestDB(t)
	s := store.NewGormOrderStore(db)
	user := seedUser(t, db)
	product := seedProduct(t, db, 10.00, 10)

	order := placeOrder(t, s, user.ID, product, 0, 3)
	deliverOrder(t, s, order.ID)
	assert.Equal(t, 7, variantStock(t, db, product.Variants[0].ID))

	ret, err := s.CreateReturn(context.Background(), store.CreateReturnCommand{
		OrderID: order.ID,
		UserID:  user.ID,
		Lines: []store.ReturnLine{{
			OrderItemID: order.Items[0].ID,
			Quantity:    2,
		}},
	})
	require.NoError(t, err)

	approved, err := s.UpdateReturnStatus(context.Background(), ret.ID, store.UpdateReturnStatusCommand{
		Status:     models.ReturnStatusApproved,
		AdminNotes: "ok",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReturnStatusApproved, approved.Status)
	assert.Equal(t, "ok", approved.AdminNotes)

	// Only the returned quantity goes back, not the whole order line.
	assert.Equal(t, 9, variantStock(t, db, product.Variants[0].ID))

	updatedOrder, err := s.GetOrder(context.Background(), order.ID, user.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReturnApproved, updatedOrder.Status)
}

func TestRejectReturnKeepsStock(t *testing.T) {
	db := newTestDB(t)
	s := store.NewGormOrderStore(db)
	user := seedUser(t, db)
	product := seedProduct(t, db, 10.00, 10)

	order := placeOrder(t, s, user.ID, product, 0, 3)
	deliverOrder(t, s, order.ID)

	ret, err := s.CreateReturn(context.Background(), store.CreateReturnCommand{
		OrderID: order.ID,
		UserID:  user.ID,
		Lines: []store.ReturnLine{{
			OrderItemID: order.Items[0].ID,
			Quantity:    3,
		}},
	})
	require.NoError(t, err)

	rejected, err := s.UpdateReturnStatus(context.Background(), ret.ID, store.UpdateReturnStatusCommand{
		Status: models.ReturnStatusRejected,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReturnStatusRejected, rejected.Status)
	assert.Equal(t, 7, variantStock(t, db, product.Variants[0].ID))

	updatedOrder, err := s.GetOrder(context.Background(), order.ID, user.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReturnRejected, updatedOrder.Status)

	// A resolved return cannot be re-resolved.
	_, err = s.UpdateReturnStatus(context.Background(), ret.ID, store.UpdateReturnStatusCommand{
		Status: models.ReturnStatusApproved,
	})
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
}
