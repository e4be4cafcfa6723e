// Package main provides the entry point for the fsverify CLI.
package main

import (
	"errors"
	"os"

	"github.com/jamesainslie/fsverify/pkg/fsverify/logging"
)

func main() {
	err := Execute()
	_ = logging.Close()
	if err != nil {
		if !errors.Is(err, errValidationFailed) {
			printError("%v", err)
		}
		os.Exit(1)
	}
}
