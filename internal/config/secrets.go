// internal/config/secrets.go
//
// Vault reference resolution.
//
// Values shaped like `vault:<mount>/<path>#<key>` are swapped for the
// secret they point at.  The resolver only needs `GetKV`, so tests pass a
// map-backed fake and cmd/web passes *vault.Client.

package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const vaultPrefix = "vault:"

// SecretSource is satisfied by *vault.Client.
type SecretSource interface {
	GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error)
}

// NeedsSecrets reports whether any supported field still holds a Vault
// reference, so callers can skip dialling Vault entirely.
func NeedsSecrets(c *Config) bool {
	for _, p := range secretFields(c) {
		if isVaultRef(*p) {
			return true
		}
	}
	return false
}

// ResolveSecrets replaces every Vault reference in c in place, then
// re-validates the result.
func ResolveSecrets(ctx context.Context, c *Config, src SecretSource) error {
	for _, p := range secretFields(c) {
		if !isVaultRef(*p) {
			continue
		}
		path, key, err := parseVaultRef(*p)
		if err != nil {
			return err
		}
		val, err := src.GetKV(ctx, path, key, 0)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", *p, err)
		}
		*p = val
	}
	return v.Struct(c)
}

func secretFields(c *Config) []*string {
	return []*string{
		&c.Database.GlobalPassword,
		&c.Cookie.Secret,
		&c.Auth.JWTSecret,
		&c.Cache.RedisURL,
	}
}

func isVaultRef(s string) bool { return strings.HasPrefix(s, vaultPrefix) }

// parseVaultRef splits "vault:secret/blooms/db#password".
func parseVaultRef(ref string) (path, key string, err error) {
	body := strings.TrimPrefix(ref, vaultPrefix)
	path, key, ok := strings.Cut(body, "#")
	if !ok || path == "" || key == "" {
		return "", "", fmt.Errorf("config: malformed vault reference %q", ref)
	}
	return path, key, nil
}
