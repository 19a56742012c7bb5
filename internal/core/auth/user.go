package auth

import (
	"errors"
	"strings"
)

var (
	// ErrUnauthenticated is returned when no valid identity accompanies a request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when the identity lacks the required capability.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidRole is returned for role tags outside ADMIN, EMPLOYEE, CUSTOMER.
	ErrInvalidRole = errors.New("invalid role")
)

// Role is the role tag carried by every authenticated user.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleEmployee Role = "EMPLOYEE"
	RoleCustomer Role = "CUSTOMER"
)

// ParseRole accepts role tags case-insensitively.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleEmployee, RoleCustomer:
		return r, nil
	default:
		return "", ErrInvalidRole
	}
}

// User is the current caller as seen by the order core.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (u User) IsAdmin() bool    { return u.Role == RoleAdmin }
func (u User) IsEmployee() bool { return u.Role == RoleEmployee }
func (u User) IsCustomer() bool { return u.Role == RoleCustomer }

// CanManageOrders reports whether the user may run administrative order reads and transitions.
func (u User) CanManageOrders() bool {
	return u.IsAdmin() || u.IsEmployee()
}

// AuthorizeManageOrders returns a ForbiddenError unless the user can manage orders.
func (u User) AuthorizeManageOrders() error {
	if !u.CanManageOrders() {
		return &ForbiddenError{Reason: "Order management permission required"}
	}
	return nil
}

// ForbiddenError carries the reason an authenticated caller was refused.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return ErrForbidden.Error() + ": " + e.Reason
}

// Is makes errors.Is(err, ErrForbidden) match.
func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

// Forbidden returns a ForbiddenError with reason.
func Forbidden(reason string) error {
	return &ForbiddenError{Reason: reason}
}
