package main

import (
	"fmt"
	"os"

	"github.com/example/switchboard/internal/adapters/console"
	"github.com/example/switchboard/internal/cli"
)

func main() {
	if err := cli.RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, console.DescribeError(err))
		os.Exit(1)
	}
}
