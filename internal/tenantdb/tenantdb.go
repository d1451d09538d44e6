// Package tenantdb creates and prepares the per-tenant physical databases.
// The pipeline drives it through the Factory and TenantDatabase interfaces so
// tests can substitute fakes without a running PostgreSQL server.
package tenantdb

import "context"

// TenantDatabase is a short-lived handle on one tenant's database. Callers
// must Close it when the step sequence that opened it finishes.
type TenantDatabase interface {
	// Migrate applies all pending schema migrations in lexical order.
	Migrate(ctx context.Context) error

	// CountRoles reports how many roles exist so seeding can be skipped.
	CountRoles(ctx context.Context) (int, error)
	// SeedRoles inserts the default role set.
	SeedRoles(ctx context.Context) error

	// SeedModulesAndPermissions installs the module catalog and default role
	// grants. Safe to call on a partially seeded database.
	SeedModulesAndPermissions(ctx context.Context) error

	// CountUsers reports how many users exist so admin seeding can be skipped.
	CountUsers(ctx context.Context) (int, error)
	// CreateAdminUser inserts the initial admin account with a hashed password.
	CreateAdminUser(ctx context.Context, email, passwordHash string) error

	Close() error
}

// Factory provisions and opens tenant databases.
type Factory interface {
	// EnsureDatabase creates the named database on the cluster. Creating a
	// database that already exists is a success.
	EnsureDatabase(ctx context.Context, dbName string) error

	// Open connects to a tenant database by DSN.
	Open(ctx context.Context, dsn string) (TenantDatabase, error)
}
