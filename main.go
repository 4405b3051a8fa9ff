package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/tphakala/shiftledger/cmd"
)

func main() {
	// A local .env supplies SHIFTLEDGER_* overrides; it is optional.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	if err := cmd.RootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
