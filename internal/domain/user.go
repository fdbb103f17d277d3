package domain

import (
	"context"
	"time"
)

// UserRole is the platform-level role of a user
type UserRole string

const (
	RolePlatformAdmin UserRole = "platform_admin"
	RoleTenantAdmin   UserRole = "tenant_admin"
	RoleMember        UserRole = "member"
)

// User represents a credential identity. Password hashes live here only for
// the local auth provider; the orchestrator never reads them.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	TenantID     *string   `json:"tenantId,omitempty"`
	Role         UserRole  `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// EmployeeRole is the role a user holds within a tenant
type EmployeeRole string

const (
	EmployeeStaff   EmployeeRole = "STAFF"
	EmployeeManager EmployeeRole = "MANAGER"
	EmployeeAdmin   EmployeeRole = "ADMIN"
	EmployeeMember  EmployeeRole = "MEMBER"
)

// ValidInvitationRole reports whether role may be assigned via invitation
func ValidInvitationRole(role EmployeeRole) bool {
	switch role {
	case EmployeeStaff, EmployeeManager, EmployeeAdmin, EmployeeMember:
		return true
	}
	return false
}

// UserRoleFor maps an employee role to the platform role granted when the
// membership is created. Only tenant admins get elevated access.
func UserRoleFor(role EmployeeRole) UserRole {
	if role == EmployeeAdmin {
		return RoleTenantAdmin
	}
	return RoleMember
}

// EmployeeStatus is the membership lifecycle state
type EmployeeStatus string

const (
	EmployeeInvited EmployeeStatus = "INVITED"
	EmployeeActive  EmployeeStatus = "ACTIVE"
)

// Employee is the (tenant, user) membership edge; the pair is unique
type Employee struct {
	ID       string         `json:"id"`
	TenantID string         `json:"tenantId"`
	UserID   string         `json:"userId"`
	Role     EmployeeRole   `json:"role"`
	Status   EmployeeStatus `json:"status"`
	JoinedAt time.Time      `json:"joinedAt"`
}

// UserRepository defines data access for users
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// Delete removes a user row; used by compensating cleanup when a
	// registration transaction fails after the identity was created.
	Delete(ctx context.Context, id string) error
}

// EmployeeRepository defines data access for tenant memberships
type EmployeeRepository interface {
	Get(ctx context.Context, tenantID, userID string) (*Employee, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Employee, error)
}
