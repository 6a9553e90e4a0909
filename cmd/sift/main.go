package main

import (
	"os"

	"github.com/querylab/sift/cmd/sift/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
