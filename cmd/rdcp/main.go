package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	"rdcp/internal/cli"
	"rdcp/internal/global"
	"rdcp/internal/logctx"
)

func main() {
	cliOpts := cli.DefineOptions()

	var opts cli.Options
	commandFlags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	cli.SetGlobalArguments(commandFlags)
	cli.SetOptions(commandFlags, &opts)

	commandFlags.Usage = func() {
		cli.PrintHelpMenu(commandFlags, cliOpts)
	}
	err := commandFlags.Parse(os.Args[1:])
	if err != nil {
		os.Exit(cli.ExitArgError)
	}
	if commandFlags.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "Unexpected argument: %s\n", commandFlags.Arg(0))
		cli.PrintHelpMenu(commandFlags, cliOpts)
		os.Exit(cli.ExitArgError)
	}

	if opts.ShowVersion {
		if global.Verbosity > global.VerbosityStandard {
			fmt.Printf("rdcp %s\n", global.ProgVersion)
			fmt.Printf("Built using %s(%s) for %s on %s\n", runtime.Version(), runtime.Compiler, runtime.GOOS, runtime.GOARCH)
		} else {
			fmt.Println(global.ProgVersion)
		}
		os.Exit(cli.ExitOK)
	}

	global.Hostname, _ = os.Hostname()
	global.PID = os.Getpid()

	// Setting global logging
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := logctx.NewLogger("global", global.Verbosity, ctx.Done()) // New logger tied to global
	ctx = logctx.WithLogger(ctx, logger)                              // Add logger to global ctx
	logctx.StartWatcher(logger, os.Stdout)                            // Send received output to stdout

	exitCode := cli.Run(ctx, opts)

	// Finish up any stdout writes for global logger
	cancel()
	logger.Wake()
	logger.Wait()
	os.Exit(exitCode)
}
