package iam

import (
	"go.accesshub.tech/internal/api"
	"go.accesshub.tech/internal/odata"
	"go.accesshub.tech/internal/resource"
)

// ClientsConfig parameterizes the container for tenant clients.
func ClientsConfig(notifier resource.Notifier) resource.Config[Client] {
	return resource.Config[Client]{
		Name:     "clients",
		ListPath: "/api/admin/clients",
		Encoder: odata.Encoder{
			IDField:      "id",
			SearchFields: []string{"name", "identifier"},
			FieldKinds: map[string]odata.FieldKind{
				"identifier": odata.FieldExact,
				"status":     odata.FieldNumeric,
			},
			DefaultOrder: "createdAt desc",
		},
		Notifier: notifier,
	}
}

// UsersConfig parameterizes the container for user accounts.
func UsersConfig(notifier resource.Notifier) resource.Config[User] {
	return resource.Config[User]{
		Name:     "users",
		ListPath: "/api/admin/users",
		Encoder: odata.Encoder{
			IDField:      "id",
			SearchFields: []string{"name", "email"},
			FieldKinds: map[string]odata.FieldKind{
				"status":   odata.FieldNumeric,
				"clientId": odata.FieldExact,
			},
			DefaultOrder: "createdAt desc",
		},
		Notifier: notifier,
	}
}

// RolesConfig parameterizes the container for roles.
func RolesConfig(notifier resource.Notifier) resource.Config[Role] {
	return resource.Config[Role]{
		Name:     "roles",
		ListPath: "/api/admin/roles",
		Encoder: odata.Encoder{
			IDField:      "id",
			SearchFields: []string{"code", "name", "description"},
			FieldKinds: map[string]odata.FieldKind{
				"code": odata.FieldExact,
			},
			DefaultOrder: "name asc",
		},
		Notifier: notifier,
	}
}

// PermissionsConfig parameterizes the container for permissions.
func PermissionsConfig(notifier resource.Notifier) resource.Config[Permission] {
	return resource.Config[Permission]{
		Name:     "permissions",
		ListPath: "/api/admin/permissions",
		Encoder: odata.Encoder{
			IDField:      "id",
			SearchFields: []string{"code", "name", "category"},
			FieldKinds: map[string]odata.FieldKind{
				"code":     odata.FieldExact,
				"category": odata.FieldExact,
			},
			DefaultOrder: "code asc",
		},
		Notifier: notifier,
	}
}

// RolePermissionsConfig parameterizes the container for the
// permissions granted to one role. The endpoints are scoped to the
// role, so each role detail screen gets its own instance.
func RolePermissionsConfig(roleID string, notifier resource.Notifier) resource.Config[RolePermission] {
	base := "/api/admin/roles/" + roleID + "/permissions"
	return resource.Config[RolePermission]{
		Name:     "role-permissions",
		ListPath: base,
		Encoder: odata.Encoder{
			IDField:      "id",
			SearchFields: []string{"code"},
			FieldKinds: map[string]odata.FieldKind{
				"code": odata.FieldExact,
			},
			DefaultOrder: "grantedAt desc",
		},
		Notifier: notifier,
	}
}

// RoleUsersConfig parameterizes the container for the users assigned
// to one role.
func RoleUsersConfig(roleID string, notifier resource.Notifier) resource.Config[RoleUser] {
	base := "/api/admin/roles/" + roleID + "/users"
	return resource.Config[RoleUser]{
		Name:     "role-users",
		ListPath: base,
		Encoder: odata.Encoder{
			IDField:      "id",
			SearchFields: []string{"userName", "userEmail"},
			DefaultOrder: "assignedAt desc",
		},
		Notifier: notifier,
	}
}

// AuditLogConfig parameterizes the read-only audit log container.
func AuditLogConfig(notifier resource.Notifier) resource.Config[AuditEntry] {
	return resource.Config[AuditEntry]{
		Name:     "audit",
		ListPath: "/api/admin/audit",
		Encoder: odata.Encoder{
			IDField:      "id",
			SearchFields: []string{"entityType", "operation", "principalId"},
			FieldKinds: map[string]odata.FieldKind{
				"entityType": odata.FieldExact,
				"entityId":   odata.FieldExact,
			},
			DefaultOrder: "performedAt desc",
		},
		Notifier: notifier,
	}
}

// SettingsConfig parameterizes the container for system settings.
func SettingsConfig(notifier resource.Notifier) resource.Config[Setting] {
	return resource.Config[Setting]{
		Name:     "settings",
		ListPath: "/api/admin/settings",
		Encoder: odata.Encoder{
			IDField:      "id",
			SearchFields: []string{"key", "description"},
			FieldKinds: map[string]odata.FieldKind{
				"key": odata.FieldExact,
			},
			DefaultOrder: "key asc",
		},
		Notifier: notifier,
	}
}

// Console bundles the per-resource orchestrators every screen reads
// from. Role-scoped containers (role-permissions, role-users) are
// created on demand per role via their Config constructors.
type Console struct {
	Clients     *resource.Orchestrator[Client]
	Users       *resource.Orchestrator[User]
	Roles       *resource.Orchestrator[Role]
	Permissions *resource.Orchestrator[Permission]
	AuditLog    *resource.Orchestrator[AuditEntry]
	Settings    *resource.Orchestrator[Setting]
}

// NewConsole wires one orchestrator per top-level resource kind onto
// the shared transport. timing applies the configured fetch delays to
// every resource uniformly; the zero value keeps the defaults.
func NewConsole(client *api.Client, notifier resource.Notifier, timing resource.Timing) *Console {
	return &Console{
		Clients:     resource.NewOrchestrator(ClientsConfig(notifier).WithTiming(timing), client),
		Users:       resource.NewOrchestrator(UsersConfig(notifier).WithTiming(timing), client),
		Roles:       resource.NewOrchestrator(RolesConfig(notifier).WithTiming(timing), client),
		Permissions: resource.NewOrchestrator(PermissionsConfig(notifier).WithTiming(timing), client),
		AuditLog:    resource.NewOrchestrator(AuditLogConfig(notifier).WithTiming(timing), client),
		Settings:    resource.NewOrchestrator(SettingsConfig(notifier).WithTiming(timing), client),
	}
}

// RolePermissions creates the orchestrator for one role's permission grants.
func (c *Console) RolePermissions(client *api.Client, roleID string, notifier resource.Notifier) *resource.Orchestrator[RolePermission] {
	return resource.NewOrchestrator(RolePermissionsConfig(roleID, notifier), client)
}

// RoleUsers creates the orchestrator for one role's user assignments.
func (c *Console) RoleUsers(client *api.Client, roleID string, notifier resource.Notifier) *resource.Orchestrator[RoleUser] {
	return resource.NewOrchestrator(RoleUsersConfig(roleID, notifier), client)
}
