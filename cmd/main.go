package main

import (
	"os"

	"github.com/kamlaman/trivia/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
