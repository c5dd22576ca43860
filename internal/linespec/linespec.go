package linespec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/larsks/gpiocdev/internal/cdev"
)

// Polarity represents the electrical polarity of a GPIO line
type Polarity int

const (
	ActiveHigh Polarity = iota
	ActiveLow
)

// PullMode represents the pull resistor configuration
type PullMode int

const (
	PullNone PullMode = iota
	PullUp
	PullDown
	PullAuto // Automatically choose based on polarity
)

// LineSpec represents a parsed GPIO line specification
type LineSpec struct {
	// Offset is the line offset on the chip (e.g., 18 for GPIO18)
	Offset uint32

	// Polarity indicates if the line is active-high or active-low
	Polarity Polarity

	// PullMode specifies the pull resistor configuration
	PullMode PullMode
}

// Assignment is a line specification paired with the value to drive it to
type Assignment struct {
	LineSpec
	Value uint8
}

// Parse parses a GPIO line specification string
// Format: "line[:active-high|active-low][:pull-none|pull-up|pull-down|pull-auto]"
// Examples: "GPIO18", "GPIO18:active-low", "18:active-low:pull-up"
func Parse(spec string) (*LineSpec, error) {
	parts := strings.Split(spec, ":")

	offset, err := ParseOffset(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidLine, parts[0])
	}

	polarity := ActiveHigh
	pullMode := PullAuto

	for _, part := range parts[1:] {
		param := strings.ToLower(strings.TrimSpace(part))
		switch param {
		case "active-high":
			polarity = ActiveHigh
		case "active-low":
			polarity = ActiveLow
		case "pull-none":
			pullMode = PullNone
		case "pull-up":
			pullMode = PullUp
		case "pull-down":
			pullMode = PullDown
		case "pull-auto":
			pullMode = PullAuto
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownParameter, param)
		}
	}

	return &LineSpec{
		Offset:   offset,
		Polarity: polarity,
		PullMode: pullMode,
	}, nil
}

// ParseAll parses each of specs in turn, stopping at the first error
func ParseAll(specs []string) ([]*LineSpec, error) {
	lines := make([]*LineSpec, 0, len(specs))
	for _, s := range specs {
		ls, err := Parse(s)
		if err != nil {
			return nil, err
		}
		lines = append(lines, ls)
	}
	return lines, nil
}

// ParseAssignment parses "spec=value", e.g. "GPIO18:active-low=on"
func ParseAssignment(s string) (*Assignment, error) {
	idx := strings.LastIndex(s, "=")
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s (expected spec=value)", ErrInvalidAssignment, s)
	}

	ls, err := Parse(s[:idx])
	if err != nil {
		return nil, err
	}

	value, err := ParseValue(s[idx+1:])
	if err != nil {
		return nil, err
	}

	return &Assignment{LineSpec: *ls, Value: value}, nil
}

// ParseAssignments parses each of assignments in turn, stopping at the first error
func ParseAssignments(assignments []string) ([]*Assignment, error) {
	result := make([]*Assignment, 0, len(assignments))
	for _, s := range assignments {
		a, err := ParseAssignment(s)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, nil
}

// ParseValue parses a logical line value
func ParseValue(s string) (uint8, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "on", "high", "true":
		return 1, nil
	case "0", "off", "low", "false":
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidValue, s)
	}
}

// ParseEdges parses an edge selection: "rising", "falling" or "both".
func ParseEdges(s string) (cdev.EdgeFlags, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rising":
		return cdev.RisingEdge, nil
	case "falling":
		return cdev.FallingEdge, nil
	case "both", "":
		return cdev.BothEdges, nil
	default:
		return 0, fmt.Errorf("%w: %s (expected rising, falling or both)", ErrInvalidEdge, s)
	}
}

// ParseOffset parses a line name (e.g., "GPIO16") and returns the offset
// Supports both "GPIO<number>" and "<number>" formats
func ParseOffset(name string) (uint32, error) {
	numStr := name
	if strings.HasPrefix(strings.ToUpper(name), "GPIO") {
		numStr = name[len("GPIO"):]
	}

	offset, err := strconv.ParseUint(numStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s (expected format: GPIO<number> or <number>)", ErrInvalidLine, name)
	}
	return uint32(offset), nil
}

// RequestFlags returns the cdev request flags for this line. Pull-auto
// selects a pull resistor opposing the active level for inputs and no
// bias for outputs.
func (ls *LineSpec) RequestFlags(output bool) cdev.RequestFlags {
	flags := cdev.RequestInput
	if output {
		flags = cdev.RequestOutput
	}

	if ls.Polarity == ActiveLow {
		flags |= cdev.RequestActiveLow
	}

	switch ls.PullMode {
	case PullUp:
		flags |= cdev.RequestPullUp
	case PullDown:
		flags |= cdev.RequestPullDown
	case PullNone:
		flags |= cdev.RequestBiasDisable
	case PullAuto:
		if !output {
			if ls.Polarity == ActiveHigh {
				flags |= cdev.RequestPullDown
			} else {
				flags |= cdev.RequestPullUp
			}
		}
	}

	return flags
}

// String returns a string representation of the polarity
func (p Polarity) String() string {
	switch p {
	case ActiveHigh:
		return "active-high"
	case ActiveLow:
		return "active-low"
	default:
		return "unknown"
	}
}

// String returns a string representation of the pull mode
func (pm PullMode) String() string {
	switch pm {
	case PullNone:
		return "pull-none"
	case PullUp:
		return "pull-up"
	case PullDown:
		return "pull-down"
	case PullAuto:
		return "pull-auto"
	default:
		return "unknown"
	}
}

// String returns a string representation of the line specification
func (ls *LineSpec) String() string {
	return fmt.Sprintf("GPIO%d:%s:%s", ls.Offset, ls.Polarity, ls.PullMode)
}

func (a *Assignment) String() string {
	return fmt.Sprintf("%s=%d", a.LineSpec.String(), a.Value)
}
