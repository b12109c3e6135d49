package main

import (
	"os"

	"github.com/gatewatch-systems/gatewatch/internal/ctl"
)

func main() {
	if err := ctl.Execute(); err != nil {
		os.Exit(1)
	}
}
