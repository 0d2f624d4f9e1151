package models

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User represents an authenticated shopper or back-office operator.
type User struct {
	BaseModel
	FullName     string        `json:"full_name"`
	Email        string        `gorm:"uniqueIndex" json:"email"`
	Phone        string        `json:"phone"`
	CPF          string        `json:"cpf"`
	PasswordHash string        `json:"-"`
	Role         string        `gorm:"default:customer" json:"role"`
	Addresses    []UserAddress `json:"addresses,omitempty"`
	Orders       []Order       `json:"orders,omitempty"`
}

// IsAdmin reports whether the user holds the elevated back-office role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
