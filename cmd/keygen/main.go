// Command keygen prints a fresh hex-encoded AES-256 key for the
// ENCRYPTION_KEY environment variable.
package main

import (
	"fmt"
	"os"

	"remedia/internal/crypto"
)

func main() {
	key, err := crypto.GenerateKey()
	if err != nil {
		fmt.Fprintln(os.Stderr, "key generation failed:", err)
		os.Exit(1)
	}
	fmt.Println(key)
}
