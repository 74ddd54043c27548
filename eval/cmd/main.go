package main

import (
	"context"
	"fmt"
	"os"

	"github.com/andrewrchen05/bounding-box-agent/eval/runner"
)

func main() {
	if err := runner.CLI(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
