package main

import (
	"os"

	"github.com/pankcuf/ferment-sub000/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
