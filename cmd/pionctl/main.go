package main

import (
	"os"

	"github.com/OnisOris/pionctl/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
