package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/sprout/internal/models"
)

// GormOrderStore implements OrderStore on a gorm handle.
type GormOrderStore struct {
	db *gorm.DB
}

// NewGormOrderStore constructs GormOrderStore.
func NewGormOrderStore(db *gorm.DB) *GormOrderStore {
	return &GormOrderStore{db: db}
}

// PlaceOrder persists an order, its items and the stock decrements in a
// single transaction. Stock is taken with a conditional update
// (stock >= quantity in the WHERE clause), so two concurrent checkouts
// against the same variant can never drive stock negative: the loser
// sees zero affected rows and the whole order rolls back.
func (s *GormOrderStore) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (*models.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var orderID uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order := models.Order{
			UserID:          cmd.UserID,
			OrderNumber:     generateOrderNumber(),
			Status:          models.OrderStatusPending,
			ShippingAddress: cmd.ShippingAddress,
			PaymentMethod:   cmd.PaymentMethod,
			PlacedAt:        time.Now(),
		}

		// Price every line from the catalog before writing anything.
		// Client-supplied prices are display data only.
		var total float64
		for _, line := range cmd.Lines {
			var variant models.ProductVariant
			if err := tx.First(&variant, "id = ? AND product_id = ?", line.VariantID, line.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: variant %s", ErrNotFound, line.VariantID)
				}
				return err
			}

			var product models.Product
			if err := tx.First(&product, "id = ?", line.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: product %s", ErrNotFound, line.ProductID)
				}
				return err
			}

			order.Items = append(order.Items, models.OrderItem{
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Quantity:  line.Quantity,
				Price:     product.Price,
			})
			total += product.Price * float64(line.Quantity)
		}
		order.TotalAmount = total

		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for _, line := range cmd.Lines {
			res := tx.Model(&models.ProductVariant{}).
				Where("id = ? AND stock >= ?", line.VariantID, line.Quantity).
				Update("stock", gorm.Expr("stock - ?", line.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: variant %s", ErrInsufficientStock, line.VariantID)
			}
		}

		orderID = order.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.loadOrder(ctx, orderID)
}

// GetOrder returns an order with its joined items. A non-admin caller
// only sees their own orders; anything else reads as not found so the
// existence of other users' orders never leaks.
func (s *GormOrderStore) GetOrder(ctx context.Context, orderID, userID uuid.UUID, admin bool) (*models.Order, error) {
	query := s.db.WithContext(ctx).
		Preload("Items.Product").
		Preload("Items.Variant")
	if !admin {
		query = query.Where("user_id = ?", userID)
	}

	var order models.Order
	if err := query.First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return nil, err
	}
	return &order, nil
}

// ListOrders returns orders newest first, optionally scoped to one user
// and filtered by status.
func (s *GormOrderStore) ListOrders(ctx context.Context, q ListOrdersQuery) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if q.UserID != nil {
		query = query.Where("user_id = ?", *q.UserID)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	if err := query.Preload("Items.Product").
		Preload("Items.Variant").
		Order("placed_at desc").
		Limit(q.Limit).Offset(q.Offset).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateOrderStatus applies an admin transition. Cancelling an order
// puts its stock back; other transitions never touch inventory.
func (s *GormOrderStore) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, cmd UpdateOrderStatusCommand) (*models.Order, error) {
	if !cmd.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, cmd.Status)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
			}
			return err
		}

		if !order.Status.CanTransition(cmd.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, cmd.Status)
		}

		if cmd.Status == models.OrderStatusCancelled {
			if err := restockOrderItems(tx, orderID); err != nil {
				return err
			}
		}

		updates := map[string]interface{}{"status": cmd.Status}
		if cmd.TrackingID != "" {
			updates["tracking_id"] = cmd.TrackingID
		}
		if cmd.Carrier != "" {
			updates["carrier"] = cmd.Carrier
		}
		return tx.Model(&order).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	return s.loadOrder(ctx, orderID)
}

// CreateReturn opens a return request against a delivered order owned by
// the caller and moves the order to return_requested.
func (s *GormOrderStore) CreateReturn(ctx context.Context, cmd CreateReturnCommand) (*models.ReturnRequest, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var returnID uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, "id = ? AND user_id = ?", cmd.OrderID, cmd.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %s", ErrNotFound, cmd.OrderID)
			}
			return err
		}

		if !order.Status.CanTransition(models.OrderStatusReturnRequested) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, models.OrderStatusReturnRequested)
		}

		var orderItems []models.OrderItem
		if err := tx.Find(&orderItems, "order_id = ?", cmd.OrderID).Error; err != nil {
			return err
		}
		purchased := make(map[uuid.UUID]int, len(orderItems))
		for _, item := range orderItems {
			purchased[item.ID] = item.Quantity
		}

		ret := models.ReturnRequest{
			OrderID: cmd.OrderID,
			UserID:  cmd.UserID,
			Status:  models.ReturnStatusPending,
			Reason:  cmd.Reason,
		}
		for _, line := range cmd.Lines {
			qty, ok := purchased[line.OrderItemID]
			if !ok {
				return fmt.Errorf("%w: order item %s", ErrNotFound, line.OrderItemID)
			}
			if line.Quantity > qty {
				return fmt.Errorf("%w: return quantity %d exceeds purchased %d", ErrValidation, line.Quantity, qty)
			}
			ret.Items = append(ret.Items, models.ReturnItem{
				OrderItemID: line.OrderItemID,
				Quantity:    line.Quantity,
				Reason:      line.Reason,
			})
		}

		if err := tx.Create(&ret).Error; err != nil {
			return err
		}
		if err := tx.Model(&order).Update("status", models.OrderStatusReturnRequested).Error; err != nil {
			return err
		}

		returnID = ret.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetReturn(ctx, returnID)
}

// GetReturn loads a return request with its item and order context.
func (s *GormOrderStore) GetReturn(ctx context.Context, returnID uuid.UUID) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	if err := s.db.WithContext(ctx).
		Preload("Items.OrderItem").
		Preload("Order").
		First(&ret, "id = ?", returnID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: return %s", ErrNotFound, returnID)
		}
		return nil, err
	}
	return &ret, nil
}

// UpdateReturnStatus resolves a pending return. Approval restocks the
// returned quantities and both outcomes are mirrored onto the order.
func (s *GormOrderStore) UpdateReturnStatus(ctx context.Context, returnID uuid.UUID, cmd UpdateReturnStatusCommand) (*models.ReturnRequest, error) {
	if cmd.Status != models.ReturnStatusApproved && cmd.Status != models.ReturnStatusRejected {
		return nil, fmt.Errorf("%w: unknown return status %q", ErrValidation, cmd.Status)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ret models.ReturnRequest
		if err := tx.Preload("Items.OrderItem").First(&ret, "id = ?", returnID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: return %s", ErrNotFound, returnID)
			}
			return err
		}

		if ret.Status != models.ReturnStatusPending {
			return fmt.Errorf("%w: return already %s", ErrInvalidTransition, ret.Status)
		}

		orderStatus := models.OrderStatusReturnRejected
		if cmd.Status == models.ReturnStatusApproved {
			orderStatus = models.OrderStatusReturnApproved
			for _, item := range ret.Items {
				if item.OrderItem == nil {
					continue
				}
				if err := restockVariant(tx, item.OrderItem.VariantID, item.Quantity); err != nil {
					return err
				}
			}
		}

		updates := map[string]interface{}{"status": cmd.Status}
		if cmd.AdminNotes != "" {
			updates["admin_notes"] = cmd.AdminNotes
		}
		if err := tx.Model(&ret).Updates(updates).Error; err != nil {
			return err
		}

		return tx.Model(&models.Order{}).
			Where("id = ?", ret.OrderID).
			Update("status", orderStatus).Error
	})
	if err != nil {
		return nil, err
	}

	return s.GetReturn(ctx, returnID)
}

func (s *GormOrderStore) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).
		Preload("Items.Product").
		Preload("Items.Variant").
		First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func restockOrderItems(tx *gorm.DB, orderID uuid.UUID) error {
	var items []models.OrderItem
	if err := tx.Find(&items, "order_id = ?", orderID).Error; err != nil {
		return err
	}
	for _, item := range items {
		if err := restockVariant(tx, item.VariantID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// restockVariant adds quantity back to a variant. A variant that was
// removed by a catalog edit leaves an orphaned reference on the order
// item; restocking it is a no-op rather than an error.
func restockVariant(tx *gorm.DB, variantID uuid.UUID, quantity int) error {
	return tx.Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		Update("stock", gorm.Expr("stock + ?", quantity)).Error
}

func generateOrderNumber() string {
	return fmt.Sprintf("#%d", time.Now().UnixNano()%1000000000)
}
