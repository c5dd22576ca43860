package gpioctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/larsks/gpiocdev/internal/cdev"
	"github.com/larsks/gpiocdev/internal/cli"
	"github.com/larsks/gpiocdev/internal/config"
	"github.com/larsks/gpiocdev/internal/lineops"
	"github.com/larsks/gpiocdev/internal/linespec"
	"github.com/larsks/gpiocdev/internal/mqtt"
	"github.com/larsks/gpiocdev/internal/version"
	"github.com/spf13/pflag"
)

// Lines is the set of GPIO operations gpioctl uses.
type Lines interface {
	ListChips() ([]lineops.ChipSummary, error)
	ChipInfo(chip string) (lineops.ChipSummary, error)
	Lines(chip string) ([]lineops.LineSummary, error)
	Get(chip string, specs []*linespec.LineSpec) ([]lineops.LineValue, error)
	Set(ctx context.Context, chip string, assignments []*linespec.Assignment, hold time.Duration) error
	Watch(ctx context.Context, chip string, spec *linespec.LineSpec, edges cdev.EdgeFlags, fn lineops.EventHandler) error
}

// Publisher forwards watched events.
type Publisher interface {
	PublishLineEvent(chipPath string, ev cdev.LineEvent) error
	Disconnect(quiesce uint)
}

// errWatchDone stops a watch once --count events have been seen.
var errWatchDone = errors.New("watch done")

// Handler implements the gpioctl commands
type Handler struct {
	config       *Config
	lines        Lines
	newPublisher func(mqtt.Config) (Publisher, error)
	stdout       io.Writer
	stderr       io.Writer

	// Command-specific flags
	hold  time.Duration
	edge  string
	count int
}

// NewHandler creates a new gpioctl handler
func NewHandler() *Handler {
	return &Handler{
		newPublisher: func(cfg mqtt.Config) (Publisher, error) {
			return mqtt.NewClient(cfg)
		},
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// AddFlags adds command-specific flags
func (h *Handler) AddFlags(fs *pflag.FlagSet) {
	fs.DurationVar(&h.hold, "hold", 0, "How long to keep lines requested after set")
	fs.StringVarP(&h.edge, "edge", "e", "both", "Edges to watch (rising, falling or both)")
	fs.IntVarP(&h.count, "count", "n", 0, "Exit after this many events (0 = run until interrupted)")
}

// Execute implements the cli.SubCommandHandler interface
func (h *Handler) Execute(ctx context.Context, cmdArgs *cli.CommandArgs) error {
	h.config = cmdArgs.Config.(*Config)
	if h.lines == nil {
		h.lines = lineops.New(h.config.Consumer)
	}

	args := cmdArgs.Args

	switch cmdArgs.Command {
	case "version":
		version.Fprint(h.stdout)
		return nil
	case "help":
		h.showHelp()
		return nil
	case "list":
		return h.cmdList(args)
	case "info":
		return h.cmdInfo(args)
	case "get":
		return h.cmdGet(args)
	case "set":
		return h.cmdSet(ctx, args)
	case "watch":
		return h.cmdWatch(ctx, args)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmdArgs.Command)
	}
}

func (h *Handler) showHelp() {
	//nolint:errcheck
	fmt.Fprintf(h.stdout, `gpioctl - Inspect and control GPIO lines through the character device

Usage: gpioctl [flags] <command> [arguments]

Commands:
  list                        List GPIO chips
  info [chip]                 Show every line of a chip (default: all chips)
  get <line>...               Read line values
  set <line>=<value>...       Drive lines to the given values
  watch <line>                Report edge events on a line
  help                        Show this help
  version                     Show version information

Lines are given as <offset>[:active-low][:pull-up|pull-down|pull-none],
e.g. "17", "GPIO17:active-low:pull-up". Values are 0/1, on/off or high/low.

Flags:
  -c, --chip string               GPIO chip (default "%s")
      --config string             Config file to use (default "%s")
      --consumer string           Consumer label for requested lines (default "%s")
  -n, --count int                 Exit after this many events (watch)
  -e, --edge string               Edges to watch: rising, falling or both (default "both")
  -h, --help                      Show help
      --hold duration             How long to keep lines requested after set
      --mqtt.server-url string    Publish watched events to this MQTT server
      --mqtt.topic-prefix string  MQTT topic prefix (default "%s")
      --strict-config             Fail on config file keys that are not recognized
      --version                   Show version and exit
`, defaultChip, config.DefaultConfigFile(), lineops.DefaultConsumer, mqtt.DefaultTopicPrefix)
}

func (h *Handler) cmdList(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("%w: list takes no arguments", ErrUsage)
	}

	chips, err := h.lines.ListChips()
	if err != nil {
		return err
	}

	for _, chip := range chips {
		fmt.Fprintf(h.stdout, "%s [%s] (%d lines)\n", chip.Name, chip.Label, chip.NumLines) //nolint:errcheck
	}
	return nil
}

func (h *Handler) cmdInfo(args []string) error {
	var chips []string
	switch len(args) {
	case 0:
		all, err := h.lines.ListChips()
		if err != nil {
			return err
		}
		for _, chip := range all {
			chips = append(chips, chip.Path)
		}
	case 1:
		chips = args
	default:
		return fmt.Errorf("%w: info takes at most one chip", ErrUsage)
	}

	for _, name := range chips {
		chip, err := h.lines.ChipInfo(name)
		if err != nil {
			return err
		}
		lines, err := h.lines.Lines(name)
		if err != nil {
			return err
		}

		fmt.Fprintf(h.stdout, "%s - %d lines:\n", chip.Name, chip.NumLines) //nolint:errcheck
		for _, line := range lines {
			fmt.Fprintf(h.stdout, "\tline %3d: %s %s %s%s\n", //nolint:errcheck
				line.Offset, quoteOr(line.Name, "unnamed"), quoteOr(line.Consumer, "unused"),
				line.Direction, bracket(line.Flags))
		}
	}
	return nil
}

func quoteOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return fmt.Sprintf("%q", s)
}

func bracket(flags string) string {
	if flags == "" {
		return ""
	}
	return " [" + flags + "]"
}

func (h *Handler) cmdGet(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: get requires at least one line", ErrUsage)
	}

	specs, err := linespec.ParseAll(args)
	if err != nil {
		return err
	}

	values, err := h.lines.Get(h.config.Chip, specs)
	if err != nil {
		return err
	}

	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%d=%d", v.Offset, v.Value)
	}
	fmt.Fprintln(h.stdout, strings.Join(out, " ")) //nolint:errcheck
	return nil
}

func (h *Handler) cmdSet(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: set requires at least one line=value", ErrUsage)
	}

	assignments, err := linespec.ParseAssignments(args)
	if err != nil {
		return err
	}

	return h.lines.Set(ctx, h.config.Chip, assignments, h.hold)
}

func (h *Handler) cmdWatch(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: watch requires exactly one line", ErrUsage)
	}

	spec, err := linespec.Parse(args[0])
	if err != nil {
		return err
	}

	edges, err := linespec.ParseEdges(h.edge)
	if err != nil {
		return err
	}

	var publisher Publisher
	if h.config.MQTT.ServerURL != "" {
		publisher, err = h.newPublisher(h.config.MQTT)
		if err != nil {
			return err
		}
		defer publisher.Disconnect(250)
	}

	chipPath := lineops.ResolveChip(h.config.Chip)
	seen := 0
	err = h.lines.Watch(ctx, h.config.Chip, spec, edges, func(ev cdev.LineEvent) error {
		fmt.Fprintf(h.stdout, "%d %s %d.%09d\n", ev.Offset, ev.Type, ev.Timestamp/time.Second, ev.Timestamp%time.Second) //nolint:errcheck

		if publisher != nil {
			if err := publisher.PublishLineEvent(chipPath, ev); err != nil {
				log.Printf("failed to publish event: %v", err)
			}
		}

		seen++
		if h.count > 0 && seen >= h.count {
			return errWatchDone
		}
		return nil
	})

	if errors.Is(err, errWatchDone) {
		return nil
	}
	return err
}
