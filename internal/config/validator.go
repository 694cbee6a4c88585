// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `Load` calls `validateStruct` immediately after it unmarshals the merged
// Koanf tree and applies defaults.  Any validation error aborts startup,
// so the binary never runs with partial or malformed configuration.
//
// Secrets that still carry a `vault:` reference at validation time are
// accepted for length-checked fields; `ResolveSecrets` re-validates once
// the real values are in place.

package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var v = validator.New()

//
// public API
//

// validateStruct returns the first validation error, or nil on success.
func validateStruct(c *Config) error {
	shadow := *c
	if isVaultRef(shadow.Cookie.Secret) {
		shadow.Cookie.Secret = strings.Repeat("x", 32)
	}
	if isVaultRef(shadow.Auth.JWTSecret) {
		shadow.Auth.JWTSecret = strings.Repeat("x", 32)
	}
	return v.Struct(&shadow)
}
