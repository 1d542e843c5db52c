package main

import (
	"os"

	"github.com/justyntemme/razorops/internal/debug"
)

func main() {
	err := NewRootCmd().Execute()
	debug.Sync()
	if err != nil {
		os.Exit(1)
	}
}
