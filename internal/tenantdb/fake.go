package tenantdb

import (
	"context"
	"sync"
)

// FakeFactory records provisioning calls in memory. Tests use it to exercise
// the pipeline without a PostgreSQL cluster.
type FakeFactory struct {
	mu        sync.Mutex
	Databases map[string]*FakeDatabase

	EnsureErr error
	OpenErr   error
	Ensured   []string
}

func NewFakeFactory() *FakeFactory {
	return &FakeFactory{Databases: make(map[string]*FakeDatabase)}
}

func (f *FakeFactory) EnsureDatabase(ctx context.Context, dbName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EnsureErr != nil {
		return f.EnsureErr
	}
	f.Ensured = append(f.Ensured, dbName)
	return nil
}

func (f *FakeFactory) Open(ctx context.Context, dsn string) (TenantDatabase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	db, ok := f.Databases[dsn]
	if !ok {
		db = &FakeDatabase{}
		f.Databases[dsn] = db
	}
	return db, nil
}

// FakeDatabase simulates one tenant database. Error fields let tests force a
// failure at any single step.
type FakeDatabase struct {
	mu sync.Mutex

	Migrated   bool
	MigrateErr error

	Roles    int
	RolesErr error

	ModulesSeeded bool
	ModulesErr    error

	Users      int
	AdminEmail string
	AdminHash  string
	AdminErr   error

	Closed bool
}

func (d *FakeDatabase) Migrate(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.MigrateErr != nil {
		return d.MigrateErr
	}
	d.Migrated = true
	return nil
}

func (d *FakeDatabase) CountRoles(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Roles, nil
}

func (d *FakeDatabase) SeedRoles(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RolesErr != nil {
		return d.RolesErr
	}
	d.Roles = 3
	return nil
}

func (d *FakeDatabase) SeedModulesAndPermissions(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ModulesErr != nil {
		return d.ModulesErr
	}
	d.ModulesSeeded = true
	return nil
}

func (d *FakeDatabase) CountUsers(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Users, nil
}

func (d *FakeDatabase) CreateAdminUser(ctx context.Context, email, passwordHash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.AdminErr != nil {
		return d.AdminErr
	}
	d.Users = 1
	d.AdminEmail = email
	d.AdminHash = passwordHash
	return nil
}

func (d *FakeDatabase) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}
