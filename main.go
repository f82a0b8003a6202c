package main

import (
	"os"

	"github.com/niktheblak/water-quality-logger/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
