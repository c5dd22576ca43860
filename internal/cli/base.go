package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/larsks/gpiocdev/internal/version"
	"github.com/spf13/pflag"
)

// Configurable represents a type that can be configured via flags and config files
type Configurable interface {
	AddFlags(fs *pflag.FlagSet)
	LoadConfigWithFlagSet(fs *pflag.FlagSet) error
}

// CommandHandler represents a long-running service
type CommandHandler interface {
	Start(ctx context.Context, config Configurable) error
}

// SubCommandHandler represents a tool whose first argument selects a command
type SubCommandHandler interface {
	AddFlags(fs *pflag.FlagSet)
	Execute(ctx context.Context, cmdArgs *CommandArgs) error
}

// BaseCLI provides common CLI functionality
type BaseCLI struct {
	stdout io.Writer
	stderr io.Writer
}

// NewBaseCLI creates a new BaseCLI instance
func NewBaseCLI(stdout, stderr io.Writer) *BaseCLI {
	return &BaseCLI{
		stdout: stdout,
		stderr: stderr,
	}
}

// CommandArgs represents parsed command line arguments
type CommandArgs struct {
	Command string
	Args    []string
	Config  Configurable
}

// ParseArgsStandard provides standard argument parsing for version/help/start commands
func (c *BaseCLI) ParseArgsStandard(args []string, configFactory func() Configurable) (*CommandArgs, error) {
	return c.ParseArgsStandardWithFlagSet(args, configFactory, pflag.CommandLine)
}

// ParseArgsStandardWithFlagSet provides standard argument parsing with a custom flag set
func (c *BaseCLI) ParseArgsStandardWithFlagSet(args []string, configFactory func() Configurable, fs *pflag.FlagSet) (*CommandArgs, error) {
	versionFlag := fs.Bool("version", false, "Show version and exit")

	cfg := configFactory()
	cfg.AddFlags(fs)

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFlags, err)
	}

	if *versionFlag {
		return &CommandArgs{Command: "version", Config: cfg}, nil
	}

	if err := cfg.LoadConfigWithFlagSet(fs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	return &CommandArgs{Command: "start", Args: fs.Args(), Config: cfg}, nil
}

// ParseArgsWithSubcommands parses "[flags] <command> [args...]". With no
// command, or with --help, the command is "help" and no config is loaded.
func (c *BaseCLI) ParseArgsWithSubcommands(args []string, configFactory func() Configurable, handler SubCommandHandler, fs *pflag.FlagSet) (*CommandArgs, error) {
	versionFlag := fs.Bool("version", false, "Show version and exit")
	helpFlag := fs.BoolP("help", "h", false, "Show help")

	cfg := configFactory()
	cfg.AddFlags(fs)
	handler.AddFlags(fs)

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFlags, err)
	}

	if *versionFlag {
		return &CommandArgs{Command: "version", Config: cfg}, nil
	}

	remaining := fs.Args()
	if *helpFlag || len(remaining) == 0 {
		return &CommandArgs{Command: "help", Config: cfg}, nil
	}

	if err := cfg.LoadConfigWithFlagSet(fs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	return &CommandArgs{Command: remaining[0], Args: remaining[1:], Config: cfg}, nil
}

// Execute runs the specified command using standard patterns
func (c *BaseCLI) Execute(ctx context.Context, cmdArgs *CommandArgs, handler CommandHandler) error {
	switch cmdArgs.Command {
	case "version":
		version.Fprint(c.stdout)
		return nil
	case "start":
		return handler.Start(ctx, cmdArgs.Config)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmdArgs.Command)
	}
}

// StandardMain provides a complete main function implementation for simple services
func StandardMain(configFactory func() Configurable, handler CommandHandler) {
	cli := NewBaseCLI(os.Stdout, os.Stderr)

	cmdArgs, err := cli.ParseArgsStandard(os.Args[1:], configFactory)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	if err := cli.Execute(context.Background(), cmdArgs, handler); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// SubCommandMain is StandardMain for tools built on SubCommandHandler.
// Errors are printed without a timestamp and exit with status 1.
func SubCommandMain(ctx context.Context, configFactory func() Configurable, handler SubCommandHandler) {
	cli := NewBaseCLI(os.Stdout, os.Stderr)

	cmdArgs, err := cli.ParseArgsWithSubcommands(os.Args[1:], configFactory, handler, pflag.CommandLine)
	if err == nil {
		err = handler.Execute(ctx, cmdArgs)
	}

	if err != nil {
		fmt.Fprintf(cli.stderr, "Error: %v\n", err) //nolint:errcheck
		os.Exit(1)
	}
}
