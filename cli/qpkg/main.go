package main

import (
	"context"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/glorpus-work/qpkg/internal/cli"
)

func main() {
	if err := fang.Execute(
		context.Background(),
		cli.NewRootCmd(),
		fang.WithVersion(cli.VersionString()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}
