package main

import (
	"fmt"
	"os"

	"github.com/mikkurogue/jj-ryu/internal/rerr"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ryu error:", err)
		os.Exit(rerr.ExitCode(err))
	}
}
