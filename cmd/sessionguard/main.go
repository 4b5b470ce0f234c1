package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/Veraticus/sessionguard/pkg/config"
)

func main() {
	var (
		configPath string
		quiet      bool
		debug      bool
		help       bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.BoolVar(&quiet, "quiet", false, "Disable all notifications")
	flag.BoolVar(&debug, "debug", os.Getenv("SESSIONGUARD_DEBUG") == "1", "Log to stderr when no log file is configured")
	flag.BoolVarP(&help, "help", "h", false, "Show help message")
	// Everything after the first positional argument belongs to the child.
	flag.CommandLine.SetInterspersed(false)
	flag.Parse()

	if help {
		printUsage()
		os.Exit(0)
	}

	path := configPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if quiet {
		cfg.Quiet = true
	}

	command, args := childCommand(cfg, flag.Args())
	if command == "" {
		fmt.Fprintln(os.Stderr, "Error: no command to wrap")
		fmt.Fprintln(os.Stderr, "Pass it after -- or set command in the config file")
		os.Exit(2)
	}

	deps, err := NewDependencies(cfg, Options{ConfigPath: path, Debug: debug})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	app := NewApplication(deps)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Ensure terminal restoration on panic
	defer func() {
		if r := recover(); r != nil {
			_ = app.Stop() // Best effort terminal restoration
			panic(r)
		}
	}()

	go func() {
		<-sigChan
		if err := app.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error stopping process: %v\n", err)
		}
		deps.Close()
		os.Exit(130)
	}()

	deps.Logger.Debug("starting", "command", command, "args", args, "quiet", cfg.Quiet)

	if err := app.Run(command, args); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "Error running %s: %v\n", command, err)
		}
	}

	code := app.ExitCode()
	deps.Close()
	os.Exit(code)
}

// childCommand returns the command line to wrap. Arguments given on the
// command line replace the configured command and its args.
func childCommand(cfg *config.Config, positional []string) (string, []string) {
	if len(positional) > 0 {
		return positional[0], positional[1:]
	}
	return cfg.Command, cfg.Args
}

func printUsage() {
	fmt.Println("sessionguard - session guard for a terminal admin client")
	fmt.Println()
	fmt.Println("Usage: sessionguard [OPTIONS] [--] [COMMAND [ARGS...]]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  SESSIONGUARD_CONFIG            Path to config file")
	fmt.Println("  SESSIONGUARD_TOPIC             Ntfy topic for notifications")
	fmt.Println("  SESSIONGUARD_SERVER            Ntfy server URL (default: https://ntfy.sh)")
	fmt.Println("  SESSIONGUARD_QUIET             Disable notifications (true/false)")
	fmt.Println("  SESSIONGUARD_COMMAND           Command to wrap")
	fmt.Println("  SESSIONGUARD_ARGS              Arguments for the command (comma-separated)")
	fmt.Println("  SESSIONGUARD_API_URL           Admin backend URL (default: http://localhost:3000)")
	fmt.Println("  SESSIONGUARD_API_TOKEN         Admin backend bearer token")
	fmt.Println("  SESSIONGUARD_AUTO_LOCK         Lock after inactivity (true/false)")
	fmt.Println("  SESSIONGUARD_LOCK_TIMEOUT      Minutes of inactivity before locking (default: 30)")
	fmt.Println("  SESSIONGUARD_SESSION_TIMEOUT   Minutes of inactivity before logout (default: 1440)")
	fmt.Println("  SESSIONGUARD_REFRESH_INTERVAL  Seconds between inbox refreshes (default: 60)")
	fmt.Println("  SESSIONGUARD_LOG_FILE          Log file path")
	fmt.Println("  SESSIONGUARD_LOG_LEVEL         debug, info, warn or error")
	fmt.Println("  SESSIONGUARD_CONTROL_LISTEN    Address of the local control API")
	fmt.Println("  SESSIONGUARD_DEBUG             Set to 1 to log to stderr")
	fmt.Println()
	fmt.Println("Configuration file: ~/.config/sessionguard/config.yaml")
}
