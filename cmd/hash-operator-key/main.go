package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Generates the bcrypt hash for OPERATOR_KEY_HASH from a plaintext
// operator key. Usage:
//
//	hash-operator-key <key>
//
// or set OPERATOR_KEY in the environment / .env file.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	key := os.Getenv("OPERATOR_KEY")
	if len(os.Args) > 1 {
		key = os.Args[1]
	}
	if key == "" {
		log.Fatal("Usage: hash-operator-key <key> (or set OPERATOR_KEY)")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash key: %v", err)
	}

	fmt.Printf("OPERATOR_KEY_HASH=%s\n", string(hash))
}
