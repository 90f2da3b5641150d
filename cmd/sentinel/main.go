// sentinel monitors AI coding assistant sessions and resumes interrupted work.
package main

import (
	"os"

	"github.com/wethinkt/go-sentinel/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
