// Package main is the entry point for warden.
package main

import (
	"os"

	"warden/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
