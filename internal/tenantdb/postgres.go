package tenantdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"vendo/internal/platform/database"
	"vendo/migrations"
)

// pgDuplicateDatabase is the SQLSTATE raised by CREATE DATABASE when the name
// is already taken. The pipeline treats it as success so re-runs stay
// idempotent.
const pgDuplicateDatabase = "42P04"

// PostgresFactory provisions tenant databases on a PostgreSQL cluster. The
// admin connection must belong to a role with CREATEDB.
type PostgresFactory struct {
	admin *sql.DB
}

func NewPostgresFactory(admin *sql.DB) *PostgresFactory {
	return &PostgresFactory{admin: admin}
}

// EnsureDatabase creates the named database if it does not exist yet.
// CREATE DATABASE cannot run inside a transaction, so this is a single
// statement against the admin connection.
func (f *PostgresFactory) EnsureDatabase(ctx context.Context, dbName string) error {
	stmt := fmt.Sprintf("CREATE DATABASE %s", pgx.Identifier{dbName}.Sanitize())
	if _, err := f.admin.ExecContext(ctx, stmt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateDatabase {
			return nil
		}
		return fmt.Errorf("create database %q: %w", dbName, err)
	}
	return nil
}

// Open connects to a tenant database. The returned handle owns the connection
// and must be closed by the caller.
func (f *PostgresFactory) Open(ctx context.Context, dsn string) (TenantDatabase, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open tenant database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping tenant database: %w", err)
	}
	return &postgresDatabase{db: db}, nil
}

type postgresDatabase struct {
	db *sql.DB
}

func (d *postgresDatabase) Close() error {
	return d.db.Close()
}

// Migrate applies the embedded tenant migrations in lexical order.
func (d *postgresDatabase) Migrate(ctx context.Context) error {
	return database.ApplyMigrations(ctx, d.db, migrations.Tenant, "tenant")
}

// defaultRoles is the role set installed in every new tenant database.
var defaultRoles = []string{"Admin", "Manager", "Viewer"}

// moduleCatalog is the fixed set of storefront modules.
var moduleCatalog = []struct {
	Code string
	Name string
}{
	{"catalog", "Product Catalog"},
	{"orders", "Order Management"},
	{"customers", "Customer Directory"},
	{"reports", "Sales Reports"},
	{"settings", "Store Settings"},
}

func (d *postgresDatabase) CountRoles(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM roles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count roles: %w", err)
	}
	return n, nil
}

func (d *postgresDatabase) SeedRoles(ctx context.Context) error {
	for _, name := range defaultRoles {
		if _, err := d.db.ExecContext(ctx,
			`INSERT INTO roles (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
			uuid.New(), name,
		); err != nil {
			return fmt.Errorf("seed role %s: %w", name, err)
		}
	}
	return nil
}

// SeedModulesAndPermissions installs the module catalog and the default
// grants: Admin writes everywhere, Manager writes catalog and orders, Viewer
// reads only. Existing rows are left untouched.
func (d *postgresDatabase) SeedModulesAndPermissions(ctx context.Context) error {
	for _, m := range moduleCatalog {
		if _, err := d.db.ExecContext(ctx,
			`INSERT INTO modules (id, code, name) VALUES ($1, $2, $3) ON CONFLICT (code) DO NOTHING`,
			uuid.New(), m.Code, m.Name,
		); err != nil {
			return fmt.Errorf("seed module %s: %w", m.Code, err)
		}
	}

	for _, m := range moduleCatalog {
		for _, role := range defaultRoles {
			canWrite := role == "Admin" ||
				(role == "Manager" && (m.Code == "catalog" || m.Code == "orders"))
			if _, err := d.db.ExecContext(ctx, `
				INSERT INTO role_module_permissions (role_id, module_id, can_read, can_write)
				SELECT r.id, mo.id, TRUE, $3
				FROM roles r, modules mo
				WHERE r.name = $1 AND mo.code = $2
				ON CONFLICT (role_id, module_id) DO NOTHING
			`, role, m.Code, canWrite); err != nil {
				return fmt.Errorf("seed permission %s/%s: %w", role, m.Code, err)
			}
		}
	}
	return nil
}

func (d *postgresDatabase) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (d *postgresDatabase) CreateAdminUser(ctx context.Context, email, passwordHash string) error {
	if _, err := d.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, role_id, must_reset)
		SELECT $1, $2, $3, r.id, TRUE
		FROM roles r
		WHERE r.name = 'Admin'
		ON CONFLICT (email) DO NOTHING
	`, uuid.New(), email, passwordHash); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	return nil
}
