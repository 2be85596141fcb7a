// FILE: env.go
// Package main – .env loading and the session tag.
//
// The .env loading itself is delegated to github.com/joho/godotenv (replacing
// the teacher's hand-rolled whitelist parser): it populates process env vars
// that viper's AutomaticEnv() then picks up in config.go. Values already set
// in the real environment are never overridden, matching the teacher's own
// "don't clobber an existing export" rule.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// loadDotEnv reads ./.env (and ../.env, for the common "run from a cmd/
// subdir" layout) if present. Missing files are not an error.
func loadDotEnv() {
	for _, path := range []string{".env", "../.env"} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("failed to parse .env file")
		}
	}
}

// effectiveSessionTag returns the configured SESSION_TAG, or a fresh random
// token stable for this process's lifetime if none was configured.
func effectiveSessionTag(configured string) string {
	tag := strings.TrimSpace(configured)
	if tag != "" {
		return tag
	}
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "sess0000"
	}
	return hex.EncodeToString(buf)
}
