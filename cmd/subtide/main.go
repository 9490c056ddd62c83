package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		// Ctrl+C during `run` is a clean shutdown, not an error worth printing.
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "subtide:", err)
		}
		os.Exit(1)
	}
}
