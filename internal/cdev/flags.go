package cdev

import "strings"

// RequestFlags configure a line handle or line event request. Values match
// the kernel's GPIOHANDLE_REQUEST_* bits.
type RequestFlags uint32

const (
	RequestInput RequestFlags = 1 << iota
	RequestOutput
	RequestActiveLow
	RequestOpenDrain
	RequestOpenSource
	RequestPullUp
	RequestPullDown
	RequestBiasDisable
)

// EdgeFlags select which edges a line event request reports.
type EdgeFlags uint32

const (
	RisingEdge EdgeFlags = 1 << iota
	FallingEdge

	BothEdges = RisingEdge | FallingEdge
)

// LineFlags describe the current state of a line as reported by the
// GPIO_GET_LINEINFO ioctl.
type LineFlags uint32

const (
	LineUsed LineFlags = 1 << iota
	LineIsOut
	LineActiveLow
	LineOpenDrain
	LineOpenSource
	LinePullUp
	LinePullDown
	LineBiasDisable
)

type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

var requestFlagNames = []struct {
	flag RequestFlags
	name string
}{
	{RequestInput, "input"},
	{RequestOutput, "output"},
	{RequestActiveLow, "active-low"},
	{RequestOpenDrain, "open-drain"},
	{RequestOpenSource, "open-source"},
	{RequestPullUp, "pull-up"},
	{RequestPullDown, "pull-down"},
	{RequestBiasDisable, "bias-disable"},
}

func (f RequestFlags) String() string {
	var names []string
	for _, n := range requestFlagNames {
		if f&n.flag != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, ",")
}

func (e EdgeFlags) String() string {
	switch e {
	case RisingEdge:
		return "rising"
	case FallingEdge:
		return "falling"
	case BothEdges:
		return "both"
	default:
		return "none"
	}
}

var lineFlagNames = []struct {
	flag LineFlags
	name string
}{
	{LineUsed, "used"},
	{LineActiveLow, "active-low"},
	{LineOpenDrain, "open-drain"},
	{LineOpenSource, "open-source"},
	{LinePullUp, "pull-up"},
	{LinePullDown, "pull-down"},
	{LineBiasDisable, "bias-disable"},
}

// String lists the set flags, excluding direction.
func (f LineFlags) String() string {
	var names []string
	for _, n := range lineFlagNames {
		if f&n.flag != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, ",")
}
