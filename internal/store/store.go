package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/sprout/internal/models"
)

// Sentinel errors returned by OrderStore implementations. Handlers map
// these onto HTTP statuses; anything else is an infrastructure failure.
var (
	// ErrValidation marks client-fixable input problems, rejected before
	// any write happens.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound covers unknown ids and rows the caller is not allowed
	// to see. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientStock means a concurrent checkout won the stock; the
	// whole order was rolled back and it is safe to retry with a lower
	// quantity.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidTransition rejects a status change the order state
	// machine does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// OrderLine is one entry of a submitted cart snapshot. Prices are not
// accepted from the client; the store snapshots the catalog price.
type OrderLine struct {
	ProductID uuid.UUID
	VariantID uuid.UUID
	Quantity  int
}

// PlaceOrderCommand is a validated checkout submission.
type PlaceOrderCommand struct {
	UserID          uuid.UUID
	Lines           []OrderLine
	ShippingAddress string
	PaymentMethod   string
}

// Validate rejects malformed commands before a transaction is opened.
func (c PlaceOrderCommand) Validate() error {
	if c.UserID == uuid.Nil {
		return fmt.Errorf("%w: missing user id", ErrValidation)
	}
	if len(c.Lines) == 0 {
		return fmt.Errorf("%w: empty cart", ErrValidation)
	}
	if c.ShippingAddress == "" {
		return fmt.Errorf("%w: missing shipping address", ErrValidation)
	}
	for i, line := range c.Lines {
		if line.ProductID == uuid.Nil || line.VariantID == uuid.Nil {
			return fmt.Errorf("%w: line %d missing product or variant id", ErrValidation, i)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: line %d has non-positive quantity", ErrValidation, i)
		}
	}
	return nil
}

// UpdateOrderStatusCommand is an admin status transition.
type UpdateOrderStatusCommand struct {
	Status     models.OrderStatus
	TrackingID string
	Carrier    string
}

// ReturnLine references an order item being sent back.
type ReturnLine struct {
	OrderItemID uuid.UUID
	Quantity    int
	Reason      string
}

// CreateReturnCommand is a customer return request against a delivered order.
type CreateReturnCommand struct {
	OrderID uuid.UUID
	UserID  uuid.UUID
	Reason  string
	Lines   []ReturnLine
}

// Validate rejects malformed return requests before any write.
func (c CreateReturnCommand) Validate() error {
	if c.OrderID == uuid.Nil || c.UserID == uuid.Nil {
		return fmt.Errorf("%w: missing order or user id", ErrValidation)
	}
	if len(c.Lines) == 0 {
		return fmt.Errorf("%w: no return items", ErrValidation)
	}
	for i, line := range c.Lines {
		if line.OrderItemID == uuid.Nil {
			return fmt.Errorf("%w: return line %d missing order item id", ErrValidation, i)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: return line %d has non-positive quantity", ErrValidation, i)
		}
	}
	return nil
}

// UpdateReturnStatusCommand is an admin approval or rejection.
type UpdateReturnStatusCommand struct {
	Status     models.ReturnStatus
	AdminNotes string
}

// ListOrdersQuery filters and paginates order listings. A nil UserID
// means admin scope (all users).
type ListOrdersQuery struct {
	UserID *uuid.UUID
	Status models.OrderStatus
	Limit  int
	Offset int
}

// OrderStore is the single persistence abstraction for the order flow.
// PlaceOrder is the only operation with a multi-row invariant: an order,
// its items and the stock decrements commit together or not at all, and
// variant stock never goes negative under concurrent checkouts.
type OrderStore interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (*models.Order, error)
	GetOrder(ctx context.Context, orderID, userID uuid.UUID, admin bool) (*models.Order, error)
	ListOrders(ctx context.Context, q ListOrdersQuery) ([]models.Order, int64, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, cmd UpdateOrderStatusCommand) (*models.Order, error)
	CreateReturn(ctx context.Context, cmd CreateReturnCommand) (*models.ReturnRequest, error)
	GetReturn(ctx context.Context, returnID uuid.UUID) (*models.ReturnRequest, error)
	UpdateReturnStatus(ctx context.Context, returnID uuid.UUID, cmd UpdateReturnStatusCommand) (*models.ReturnRequest, error)
}
