// Package iam defines the admin console's resource catalog: the entity
// types managed by the console and the per-resource configuration that
// parameterizes the generic state container for each of them.
package iam

import (
	"time"

	"go.accesshub.tech/internal/common/tempid"
)

// ClientStatus defines the status of a client
type ClientStatus string

const (
	ClientStatusActive    ClientStatus = "ACTIVE"
	ClientStatusInactive  ClientStatus = "INACTIVE"
	ClientStatusSuspended ClientStatus = "SUSPENDED"
)

// Client represents a tenant/organization managed in the console
type Client struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Identifier      string       `json:"identifier"` // Unique human-readable identifier
	Status          ClientStatus `json:"status"`
	StatusReason    string       `json:"statusReason,omitempty"`
	StatusChangedAt time.Time    `json:"statusChangedAt,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

func (c Client) GetID() string { return c.ID }

// IsActive returns true if the client is active
func (c Client) IsActive() bool { return c.Status == ClientStatusActive }

// UserStatus defines the status of a user account
type UserStatus string

const (
	UserStatusActive      UserStatus = "ACTIVE"
	UserStatusDeactivated UserStatus = "DEACTIVATED"
	UserStatusPending     UserStatus = "PENDING"
)

// User represents a person with console or platform access
type User struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Status      UserStatus `json:"status"`
	ClientID    string     `json:"clientId,omitempty"`
	Roles       []string   `json:"roles,omitempty"`
	LastLoginAt time.Time  `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (u User) GetID() string { return u.ID }

// Role represents a named permission bundle, formatted {application}:{role-name}
type Role struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	System      bool      `json:"system"` // built-in roles cannot be deleted
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (r Role) GetID() string { return r.ID }

// Permission represents a grantable permission
type Permission struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (p Permission) GetID() string { return p.ID }

// RolePermission links a permission to a role
type RolePermission struct {
	ID           string    `json:"id"`
	RoleID       string    `json:"roleId"`
	PermissionID string    `json:"permissionId"`
	Code         string    `json:"code"`
	GrantedAt    time.Time `json:"grantedAt"`
}

func (rp RolePermission) GetID() string { return rp.ID }

// RoleUser links a user to a role
type RoleUser struct {
	ID         string    `json:"id"`
	RoleID     string    `json:"roleId"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	UserEmail  string    `json:"userEmail"`
	AssignedAt time.Time `json:"assignedAt"`
}

func (ru RoleUser) GetID() string { return ru.ID }

// AuditEntry records one operation performed on an entity
type AuditEntry struct {
	ID          string    `json:"id"`
	EntityType  string    `json:"entityType"`
	EntityID    string    `json:"entityId,omitempty"`
	Operation   string    `json:"operation"`
	PrincipalID string    `json:"principalId,omitempty"`
	PerformedAt time.Time `json:"performedAt"`
}

func (a AuditEntry) GetID() string { return a.ID }

// Setting is one system configuration entry
type Setting struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (s Setting) GetID() string { return s.ID }

// Draft constructors return entities carrying a placeholder id for
// optimistic creation. The server's definitive id replaces the
// placeholder when the create confirms.

// NewDraftClient prepares a client for optimistic creation.
func NewDraftClient(name, identifier string) Client {
	return Client{
		ID:         tempid.New(),
		Name:       name,
		Identifier: identifier,
		Status:     ClientStatusActive,
	}
}

// NewDraftUser prepares a user for optimistic creation.
func NewDraftUser(name, email string) User {
	return User{
		ID:     tempid.New(),
		Name:   name,
		Email:  email,
		Status: UserStatusPending,
	}
}

// NewDraftRole prepares a role for optimistic creation.
func NewDraftRole(code, name string) Role {
	return Role{
		ID:   tempid.New(),
		Code: code,
		Name: name,
	}
}

// NewDraftPermission prepares a permission for optimistic creation.
func NewDraftPermission(code, name string) Permission {
	return Permission{
		ID:   tempid.New(),
		Code: code,
		Name: name,
	}
}
