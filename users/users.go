package users

import (
	"fmt"
	"slices"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// RoleType is a role name as it appears in the roles claim.
type RoleType string

const (
	RoleAdmin         RoleType = "ADMIN"          // Manages every company
	RoleManager       RoleType = "MANAGER"        // Manages one company and its shops
	RoleShopAssistant RoleType = "SHOP_ASSISTANT" // Works in a single shop
	RoleDeliveryGuy   RoleType = "DELIVERY_GUY"   // Delivers orders for a company
)

type User struct {
	ID           string     `json:"id,omitempty"`
	Email        string     `json:"email,omitempty"`
	PasswordHash string     `json:"-"` // never serialize
	FirstName    string     `json:"firstName,omitempty"`
	LastName     string     `json:"lastName,omitempty"`
	Roles        []RoleType `json:"roles,omitempty"`
	CompanyID    string     `json:"companyId,omitempty"` // Tenant scope, empty for ADMIN
	ShopID       string     `json:"shopId,omitempty"`    // Sub-tenant scope
	DateJoined   time.Time  `json:"dateJoined,omitempty"`
	LastLogin    time.Time  `json:"lastLogin,omitempty"`
	Blocked      bool       `json:"blocked,omitempty"`
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares password with the user's stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (u *User) HasRole(role RoleType) bool {
	return slices.Contains(u.Roles, role)
}

// RoleNames returns the roles as plain strings for the token claims.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, string(r))
	}
	return names
}

// New builds a user with a hashed password after checking its strength.
func New(email, password string, roles ...RoleType) (*User, error) {
	if err := ValidatePasswordStrength(password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &User{
		Email:        email,
		PasswordHash: hash,
		Roles:        roles,
		DateJoined:   time.Now(),
	}, nil
}
