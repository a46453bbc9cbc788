package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	appLogging "avb/application/logging"
	"avb/domain/app"
	"avb/domain/mode"
	clientConfiguration "avb/infrastructure/PAL/configuration/client"
	palSignal "avb/infrastructure/PAL/signal"
	"avb/infrastructure/issuance"
	"avb/infrastructure/logging"
	"avb/presentation/mode_selection"
	clientRunner "avb/presentation/runners/client"
	serverRunner "avb/presentation/runners/server"
	"avb/presentation/runners/version"
	"avb/presentation/signals/shutdown"
	"avb/presentation/ui/tui"
)

const (
	ServerMode = "s"
	ClientMode = "c"
)

func main() {
	os.Exit(run())
}

func run() int {
	appCtx, appCtxCancel := context.WithCancel(context.Background())
	defer appCtxCancel()

	shutdown.NewHandler(
		appCtx,
		appCtxCancel,
		palSignal.NewDefaultProvider(),
		shutdown.NewNotifier(),
		logging.NewLogLogger(),
	).Handle()

	selectedMode, err := mode_selection.NewTeaAppMode(os.Args).Mode()
	if err != nil {
		fmt.Println(err)
		printUsage()
		return 2
	}

	var args []string
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}

	switch selectedMode {
	case mode.Version:
		version.NewRunner().Run(appCtx)
		return 0
	case mode.Client:
		return exitCode(startClient(appCtx, args))
	case mode.Server:
		return exitCode(startServer(appCtx, args))
	default:
		printUsage()
		return 2
	}
}

func startClient(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	conf, err := clientConfiguration.Parse(fs, args, nil, time.Now())
	if err != nil {
		return err
	}
	uiMode, err := conf.UIMode()
	if err != nil {
		return err
	}
	logs := tui.NewLogBuffer(0)
	logger := newLogger(uiMode, logs, "client")

	deps := clientRunner.NewDependencies(conf, logger)
	return clientRunner.NewRunner(deps, uiMode, logs, os.Stdin).Run(ctx)
}

func startServer(ctx context.Context, args []string) error {
	logs := tui.NewLogBuffer(0)
	// the ui mode is not known before the settings are read
	bootLogger := logging.NewPrefixedLogLogger("server")
	settings, err := serverRunner.LoadSettings(args, nil, bootLogger)
	if err != nil {
		return err
	}
	issuerConfig, err := issuance.ParseConfig(nil)
	if err != nil {
		return err
	}
	logger := newLogger(settings.UIMode, logs, "server")

	deps := serverRunner.NewDependencies(settings.Configuration, settings.ConfigurationManager, logger)
	return serverRunner.NewRunner(deps, settings.UIMode, issuerConfig, logs, os.Stdin).Run(ctx)
}

// newLogger keeps log lines off the terminal while a dashboard owns it.
func newLogger(uiMode app.UIMode, logs io.Writer, prefix string) appLogging.Logger {
	if uiMode == app.TUI {
		return logging.NewWriterLogger(logs, prefix)
	}
	return logging.NewPrefixedLogLogger(prefix)
}

func exitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	fmt.Fprintln(os.Stderr, err)
	return 1
}

func printUsage() {
	fmt.Printf(`Usage: %s <mode> [flags]
Modes:
  %s  - Server
  %s  - Client
  v  - Version
`, app.DirName, ServerMode, ClientMode)
}
