// Package main provides a CLI tool for generating local development secrets:
// protector keys and confirmation tokens signed with the dev key. Tokens
// produced here will NOT validate against a production signing key.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"vendo/internal/protect"
	"vendo/internal/provision/token"
	id "vendo/pkg/domain"
)

const (
	// Dev signing key - matches config.go when VENDO_CONFIRM_SIGNING_KEY is not set
	devSigningKey = "dev-secret-key-change-in-production"
)

func main() {
	protectorCmd := flag.NewFlagSet("protector-key", flag.ExitOnError)

	confirmCmd := flag.NewFlagSet("confirm", flag.ExitOnError)
	confirmTenantID := confirmCmd.String("tenant-id", "", "Tenant ID (UUID). Generated if empty.")
	confirmSlug := confirmCmd.String("slug", "demo-shop", "Tenant slug")
	confirmTTL := confirmCmd.Duration("ttl", token.DefaultTTL, "Token time-to-live")
	confirmKey := confirmCmd.String("key", devSigningKey, "HS256 signing key")
	confirmJSON := confirmCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "protector-key":
		protectorCmd.Parse(os.Args[2:])
		key, err := protect.GenerateKey()
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		fmt.Println(key)

	case "confirm":
		confirmCmd.Parse(os.Args[2:])
		tenantID := id.TenantID(uuid.New())
		if *confirmTenantID != "" {
			parsed, err := id.ParseTenantID(*confirmTenantID)
			if err != nil {
				fmt.Fprintln(os.Stderr, "error: invalid tenant id:", err)
				os.Exit(1)
			}
			tenantID = parsed
		}

		svc := token.NewService(*confirmKey, *confirmTTL)
		tok, err := svc.Issue(tenantID, *confirmSlug, time.Now())
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}

		if *confirmJSON {
			out := map[string]string{
				"token":      tok,
				"tenant_id":  tenantID.String(),
				"slug":       *confirmSlug,
				"expires_in": confirmTTL.String(),
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.Encode(out)
			return
		}
		fmt.Printf("tenant_id: %s\nslug:      %s\ntoken:     %s\n", tenantID, *confirmSlug, tok)
		fmt.Printf("\ncurl -X POST http://localhost:8080/provision/tenants/confirm -H 'Authorization: Bearer %s'\n", tok)

	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  keygen protector-key           generate a base64 key for VENDO_PROTECTOR_KEY
  keygen confirm [flags]         sign a confirmation token with the dev key`)
}
