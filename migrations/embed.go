// Package migrations embeds SQL migration files. Master migrations shape the
// registry database; tenant migrations shape each per-tenant database and are
// applied by the provisioning pipeline in lexical order.
package migrations

import "embed"

//go:embed master/*.sql
var Master embed.FS

//go:embed tenant/*.sql
var Tenant embed.FS
