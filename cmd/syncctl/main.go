// Command syncctl runs and inspects sheet syncs from the command line. It
// reads the same environment (and .env file) as the server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/sheetsync/internal/config"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(config.Load, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
