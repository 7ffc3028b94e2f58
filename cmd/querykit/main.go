package main

import (
	"os"

	"github.com/solatis/querykit/cmd/querykit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
