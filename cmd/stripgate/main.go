package main

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/ben-ranford/stripgate/internal/app"
	"github.com/ben-ranford/stripgate/internal/cli"
)

var exitFunc = os.Exit

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	runner := app.New(errOut)
	commandLine := cli.New(runner, out, errOut)
	return commandLine.Run(ctx, args)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}
