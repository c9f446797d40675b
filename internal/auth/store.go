// Package auth owns the console session: the access/refresh token pair,
// cached principal data, and the persisted key set that must be fully
// purged on logout.
package auth

import "context"

// Fixed keys under which credentials and cached principal data are
// persisted. Logout purges every one of them.
const (
	KeyAccessToken  = "accesshub.access_token"
	KeyRefreshToken = "accesshub.refresh_token"
	KeyTokenType    = "accesshub.token_type"
	KeyExpiresAt    = "accesshub.expires_at"
	KeyUser         = "accesshub.user"
	KeyPermissions  = "accesshub.permissions"
	KeyRoles        = "accesshub.roles"
)

// PersistedKeys lists every key the session writes, in purge order.
func PersistedKeys() []string {
	return []string{
		KeyAccessToken,
		KeyRefreshToken,
		KeyTokenType,
		KeyExpiresAt,
		KeyUser,
		KeyPermissions,
		KeyRoles,
	}
}

// Store persists session keys. Implementations: in-memory (tests,
// development), file (single-user desktop sessions), Redis (shared
// deployments).
type Store interface {
	// Get returns the value for key, or "" when absent.
	Get(ctx context.Context, key string) (string, error)

	// Set writes a key.
	Set(ctx context.Context, key, value string) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any underlying resources.
	Close() error
}
