package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"ragctl/cmd"
)

func main() {
	// Credentials for the embedding and chat endpoints may live in a .env
	// file next to the binary.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
