package models

import "github.com/google/uuid"

// ReturnStatus enumerates the return-request lifecycle.
type ReturnStatus string

const (
	ReturnStatusPending  ReturnStatus = "pending"
	ReturnStatusApproved ReturnStatus = "approved"
	ReturnStatusRejected ReturnStatus = "rejected"
)

// ReturnRequest is raised by a customer against a delivered order and
// resolved by an admin.
type ReturnRequest struct {
	BaseModel
	OrderID    uuid.UUID    `gorm:"type:uuid;index" json:"order_id"`
	Order      *Order       `json:"order,omitempty"`
	UserID     uuid.UUID    `gorm:"type:uuid;index" json:"user_id"`
	Status     ReturnStatus `json:"status"`
	Reason     string       `json:"reason"`
	AdminNotes string       `json:"admin_notes"`
	Items      []ReturnItem `gorm:"foreignKey:ReturnID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// ReturnItem references an order line; Quantity may not exceed the
// quantity originally purchased.
type ReturnItem struct {
	BaseModel
	ReturnID    uuid.UUID  `gorm:"type:uuid;index" json:"return_id"`
	OrderItemID uuid.UUID  `gorm:"type:uuid" json:"order_item_id"`
	OrderItem   *OrderItem `json:"order_item,omitempty"`
	Quantity    int        `json:"quantity"`
	Reason      string     `json:"reason"`
}
