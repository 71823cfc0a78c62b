package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"

	"key_gateway/internal/auth"
	"key_gateway/internal/storage"
)

// Generates the secrets the gateway reads from the environment: an
// admin service token with its argon2id hash, and an AES key for
// encrypting provider secrets at rest. The plaintext token is printed
// once and never stored.
func main() {
	token := os.Getenv("ADMIN_TOKEN")
	if token == "" {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Failed to generate token: %v\n", err)
			os.Exit(1)
		}
		token = base64.RawURLEncoding.EncodeToString(raw)
		fmt.Printf("Generated admin token (store securely, shown once):\n  %s\n\n", token)
	}

	hash, err := auth.HashAdminToken(token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to hash token: %v\n", err)
		os.Exit(1)
	}

	encKey, err := storage.GenerateKey(32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to generate encryption key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Add to the gateway environment:")
	fmt.Printf("  ADMIN_TOKEN_HASH='%s'\n", hash)
	fmt.Printf("  ENCRYPTION_KEY='%s'\n", encKey)
}
