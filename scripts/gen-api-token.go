package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// Mints an API token and the hash to store in users.api_token_hash.
func main() {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	token := hex.EncodeToString(raw)
	hash := sha256.Sum256([]byte(token))

	fmt.Printf("token: %s\n", token)
	fmt.Printf("hash:  %s\n", hex.EncodeToString(hash[:]))
}
