package gpioctl

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"syscall"
	"testing"
	"time"

	"github.com/larsks/gpiocdev/internal/cdev"
	"github.com/larsks/gpiocdev/internal/cli"
	"github.com/larsks/gpiocdev/internal/lineops"
	"github.com/larsks/gpiocdev/internal/linespec"
	"github.com/larsks/gpiocdev/internal/mqtt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLines struct {
	numLines uint32
	values   map[uint32]uint8
	setErr   error
	events   []cdev.LineEvent

	lastHold  time.Duration
	lastEdges cdev.EdgeFlags
}

func newFakeLines() *fakeLines {
	return &fakeLines{numLines: 8, values: map[uint32]uint8{3: 1}}
}

func (f *fakeLines) check(chip string) error {
	if chip != "gpiochip0" && chip != "/dev/gpiochip0" {
		path := lineops.ResolveChip(chip)
		return cdev.OpenChip(path, &fs.PathError{Op: "open", Path: path, Err: syscall.ENOENT})
	}
	return nil
}

func (f *fakeLines) ListChips() ([]lineops.ChipSummary, error) {
	return []lineops.ChipSummary{{Path: "/dev/gpiochip0", Name: "gpiochip0", Label: "pinctrl-fake", NumLines: f.numLines}}, nil
}

func (f *fakeLines) ChipInfo(chip string) (lineops.ChipSummary, error) {
	if err := f.check(chip); err != nil {
		return lineops.ChipSummary{}, err
	}
	chips, _ := f.ListChips()
	return chips[0], nil
}

func (f *fakeLines) Lines(chip string) ([]lineops.LineSummary, error) {
	if err := f.check(chip); err != nil {
		return nil, err
	}
	return []lineops.LineSummary{
		{Offset: 0, Name: "ID_SDA", Direction: "input"},
		{Offset: 1, Consumer: "led", Direction: "output", Used: true, Flags: "active-low"},
	}, nil
}

func (f *fakeLines) Get(chip string, specs []*linespec.LineSpec) ([]lineops.LineValue, error) {
	if err := f.check(chip); err != nil {
		return nil, err
	}
	var values []lineops.LineValue
	for _, spec := range specs {
		if spec.Offset >= f.numLines {
			return nil, cdev.OffsetOutOfRange()
		}
		values = append(values, lineops.LineValue{Offset: spec.Offset, Value: f.values[spec.Offset]})
	}
	return values, nil
}

func (f *fakeLines) Set(ctx context.Context, chip string, assignments []*linespec.Assignment, hold time.Duration) error {
	f.lastHold = hold
	if err := f.check(chip); err != nil {
		return err
	}
	if f.setErr != nil {
		return f.setErr
	}
	for _, a := range assignments {
		f.values[a.Offset] = a.Value
	}
	return nil
}

func (f *fakeLines) Watch(ctx context.Context, chip string, spec *linespec.LineSpec, edges cdev.EdgeFlags, fn lineops.EventHandler) error {
	f.lastEdges = edges
	if err := f.check(chip); err != nil {
		return err
	}
	for _, ev := range f.events {
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}

type fakePublisher struct {
	events       []cdev.LineEvent
	disconnected bool
}

func (p *fakePublisher) PublishLineEvent(chipPath string, ev cdev.LineEvent) error {
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) Disconnect(quiesce uint) { p.disconnected = true }

func newTestHandler(lines Lines) (*Handler, *bytes.Buffer) {
	var stdout bytes.Buffer
	h := NewHandler()
	h.lines = lines
	h.stdout = &stdout
	h.stderr = &bytes.Buffer{}
	h.edge = "both"
	return h, &stdout
}

func run(h *Handler, command string, args ...string) error {
	return h.Execute(context.Background(), &cli.CommandArgs{Command: command, Args: args, Config: NewConfig()})
}

func TestHelp(t *testing.T) {
	h, stdout := newTestHandler(newFakeLines())
	require.NoError(t, run(h, "help"))
	assert.Contains(t, stdout.String(), "Usage: gpioctl")
	assert.Contains(t, stdout.String(), "watch <line>")
}

func TestVersion(t *testing.T) {
	h, stdout := newTestHandler(newFakeLines())
	require.NoError(t, run(h, "version"))
	assert.NotEmpty(t, stdout.String())
}

func TestUnknownCommand(t *testing.T) {
	h, _ := newTestHandler(newFakeLines())
	assert.ErrorIs(t, run(h, "frobnicate"), ErrUnknownCommand)
}

func TestList(t *testing.T) {
	h, stdout := newTestHandler(newFakeLines())
	require.NoError(t, run(h, "list"))
	assert.Equal(t, "gpiochip0 [pinctrl-fake] (8 lines)\n", stdout.String())

	assert.ErrorIs(t, run(h, "list", "extra"), ErrUsage)
}

func TestInfo(t *testing.T) {
	h, stdout := newTestHandler(newFakeLines())
	require.NoError(t, run(h, "info", "gpiochip0"))

	assert.Equal(t, "gpiochip0 - 8 lines:\n"+
		"\tline   0: \"ID_SDA\" unused input\n"+
		"\tline   1: unnamed \"led\" output [active-low]\n", stdout.String())
}

func TestInfo_AllChips(t *testing.T) {
	h, stdout := newTestHandler(newFakeLines())
	require.NoError(t, run(h, "info"))
	assert.Contains(t, stdout.String(), "gpiochip0 - 8 lines:")
}

func TestInfo_MissingChip(t *testing.T) {
	h, _ := newTestHandler(newFakeLines())
	err := run(h, "info", "/dev/does-not-exist")

	require.Error(t, err)
	assert.Equal(t, "unable to open chip at path /dev/does-not-exist", err.Error())
	assert.True(t, cdev.IsKind(err, cdev.KindOpenChip))
}

func TestGet(t *testing.T) {
	h, stdout := newTestHandler(newFakeLines())
	require.NoError(t, run(h, "get", "3", "GPIO4:active-low"))
	assert.Equal(t, "3=1 4=0\n", stdout.String())
}

func TestGet_Errors(t *testing.T) {
	h, _ := newTestHandler(newFakeLines())

	err := run(h, "get", "64")
	require.Error(t, err)
	assert.Equal(t, "offset out of range", err.Error())
	assert.True(t, cdev.IsKind(err, cdev.KindOffsetOutOfRange))

	assert.ErrorIs(t, run(h, "get"), ErrUsage)
	assert.ErrorIs(t, run(h, "get", "bogus"), linespec.ErrInvalidLine)
}

func TestSet(t *testing.T) {
	lines := newFakeLines()
	h, _ := newTestHandler(lines)
	h.hold = time.Second

	require.NoError(t, run(h, "set", "4=on", "5=0"))
	assert.Equal(t, uint8(1), lines.values[4])
	assert.Equal(t, uint8(0), lines.values[5])
	assert.Equal(t, time.Second, lines.lastHold)
}

func TestSet_Errors(t *testing.T) {
	lines := newFakeLines()
	lines.setErr = cdev.SetLineValue(syscall.EACCES)
	h, _ := newTestHandler(lines)

	err := run(h, "set", "4=1")
	require.Error(t, err)
	assert.Equal(t, "unable to set line value: permission denied", err.Error())

	assert.ErrorIs(t, run(h, "set"), ErrUsage)
	assert.ErrorIs(t, run(h, "set", "4"), linespec.ErrInvalidAssignment)
}

func TestWatch(t *testing.T) {
	lines := newFakeLines()
	lines.events = []cdev.LineEvent{
		{Offset: 4, Timestamp: 1500 * time.Millisecond, Type: cdev.RisingEdgeEvent},
		{Offset: 4, Timestamp: 2 * time.Second, Type: cdev.FallingEdgeEvent},
		{Offset: 4, Timestamp: 3 * time.Second, Type: cdev.RisingEdgeEvent},
	}
	h, stdout := newTestHandler(lines)
	h.edge = "falling"
	h.count = 2

	require.NoError(t, run(h, "watch", "4"))
	assert.Equal(t, "4 rising 1.500000000\n4 falling 2.000000000\n", stdout.String())
	assert.Equal(t, cdev.FallingEdge, lines.lastEdges)
}

func TestWatch_PublishesToMQTT(t *testing.T) {
	lines := newFakeLines()
	lines.events = []cdev.LineEvent{{Offset: 4, Type: cdev.RisingEdgeEvent}}

	publisher := &fakePublisher{}
	h, _ := newTestHandler(lines)
	var gotConfig mqtt.Config
	h.newPublisher = func(cfg mqtt.Config) (Publisher, error) {
		gotConfig = cfg
		return publisher, nil
	}

	cfg := NewConfig()
	cfg.MQTT.ServerURL = "mqtt://broker:1883"
	err := h.Execute(context.Background(), &cli.CommandArgs{Command: "watch", Args: []string{"4"}, Config: cfg})
	require.NoError(t, err)

	assert.Equal(t, "mqtt://broker:1883", gotConfig.ServerURL)
	assert.Len(t, publisher.events, 1)
	assert.True(t, publisher.disconnected)
}

func TestWatch_Errors(t *testing.T) {
	h, _ := newTestHandler(newFakeLines())

	assert.ErrorIs(t, run(h, "watch"), ErrUsage)
	assert.ErrorIs(t, run(h, "watch", "4", "5"), ErrUsage)

	h.edge = "sideways"
	assert.ErrorIs(t, run(h, "watch", "4"), linespec.ErrInvalidEdge)

	h.edge = "both"
	h.newPublisher = func(cfg mqtt.Config) (Publisher, error) {
		return mqtt.NewClient(cfg)
	}
	cfg := NewConfig()
	cfg.MQTT.ServerURL = "tcp://broker:1883"
	err := h.Execute(context.Background(), &cli.CommandArgs{Command: "watch", Args: []string{"4"}, Config: cfg})
	assert.ErrorIs(t, err, mqtt.ErrInvalidServerURL)
}

func TestWatch_ChipError(t *testing.T) {
	h, _ := newTestHandler(newFakeLines())
	err := h.Execute(context.Background(), &cli.CommandArgs{
		Command: "watch",
		Args:    []string{"4"},
		Config:  &Config{Chip: "gpiochip9"},
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, errWatchDone))
	assert.Equal(t, "unable to open chip at path /dev/gpiochip9", err.Error())
}
