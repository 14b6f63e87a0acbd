package models

// Role controls access to the admin back-office.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User represents a registered customer or admin.
type User struct {
	BaseModel
	Name         string         `json:"name"`
	Email        string         `gorm:"uniqueIndex" json:"email"`
	PasswordHash string         `json:"-"`
	Role         Role           `gorm:"default:customer" json:"role"`
	Phone        string         `json:"phone"`
	Address      string         `json:"address"`
	Orders       []Order        `json:"orders,omitempty"`
	Wishlist     []WishlistItem `json:"wishlist,omitempty"`
}

// IsAdmin reports whether the user may use admin endpoints.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
