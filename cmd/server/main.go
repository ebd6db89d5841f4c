package main

import (
	"os"

	"github.com/runwaylens/runwaylens-backend/cmd/server/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
