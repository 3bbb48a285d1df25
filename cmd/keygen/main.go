package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/tjfontaine/campaign-orchestrator/internal/adapters/auth/apikey"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Println("Usage: go run ./cmd/keygen [api-key] [user-id]")
		fmt.Println("Hashes the API key (or a newly generated one) for use in config.yaml")
		os.Exit(0)
	}

	apiKey := ""
	if len(os.Args) > 1 {
		apiKey = os.Args[1]
	} else {
		buf := make([]byte, 24)
		if _, err := rand.Read(buf); err != nil {
			fmt.Fprintf(os.Stderr, "generate key: %v\n", err)
			os.Exit(1)
		}
		apiKey = "sk-orch-" + hex.EncodeToString(buf)
	}

	userID := "user-1"
	if len(os.Args) > 2 {
		userID = os.Args[2]
	}

	keyHash := apikey.HashAPIKey(apiKey)

	fmt.Printf("API Key: %s\n", apiKey)
	fmt.Printf("SHA-256 Hash: %s\n", keyHash)
	fmt.Println("\nAdd this to your config.yaml:")
	fmt.Printf("auth:\n")
	fmt.Printf("  api_keys:\n")
	fmt.Printf("    - key_hash: \"%s\"\n", keyHash)
	fmt.Printf("      user_id: \"%s\"\n", userID)
	fmt.Printf("      description: \"Generated key\"\n")
}
