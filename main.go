package main

import (
	"os"

	"github.com/py-daily/pywebguard/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
