package cdev

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/warthog618/go-gpiocdev/uapi"
	"golang.org/x/sys/unix"
)

// LineHandle holds one or more requested lines.
type LineHandle struct {
	file    *os.File
	offsets []uint32
	flags   RequestFlags
	ioc     ioctler
}

func (h *LineHandle) Offsets() []uint32 {
	return append([]uint32(nil), h.offsets...)
}

func (h *LineHandle) Flags() RequestFlags {
	return h.flags
}

// Values reads the value of every requested line, in request order.
func (h *LineHandle) Values() ([]uint8, error) {
	var data uapi.HandleData
	if err := h.ioc.getValues(h.file.Fd(), &data); err != nil {
		return nil, GetLineValue(err)
	}

	values := make([]uint8, len(h.offsets))
	copy(values, data[:])
	return values, nil
}

// Value reads the first requested line.
func (h *LineHandle) Value() (uint8, error) {
	values, err := h.Values()
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// SetValues drives the requested lines. values may be shorter than the
// number of lines; missing values are driven low.
func (h *LineHandle) SetValues(values []uint8) error {
	if len(values) > len(h.offsets) {
		return OffsetOutOfRange()
	}

	var data uapi.HandleData
	copy(data[:], values)
	if err := h.ioc.setValues(h.file.Fd(), data); err != nil {
		return SetLineValue(err)
	}
	return nil
}

func (h *LineHandle) SetValue(value uint8) error {
	return h.SetValues([]uint8{value})
}

func (h *LineHandle) Close() error {
	if err := h.file.Close(); err != nil {
		return FromIO(err)
	}
	return nil
}

// EventType is the edge that triggered a LineEvent.
type EventType int

const (
	RisingEdgeEvent EventType = iota + 1
	FallingEdgeEvent
)

func (t EventType) String() string {
	switch t {
	case RisingEdgeEvent:
		return "rising"
	case FallingEdgeEvent:
		return "falling"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

type LineEvent struct {
	Offset uint32
	// Timestamp is the kernel timestamp of the edge.
	Timestamp time.Duration
	Type      EventType
}

// LineEventHandle receives edge events for a single line.
type LineEventHandle struct {
	file   *os.File
	offset uint32
	edges  EdgeFlags
	ioc    ioctler
}

func (h *LineEventHandle) Offset() uint32 {
	return h.offset
}

func (h *LineEventHandle) Edges() EdgeFlags {
	return h.edges
}

// Value reads the current value of the line.
func (h *LineEventHandle) Value() (uint8, error) {
	var data uapi.HandleData
	if err := h.ioc.getValues(h.file.Fd(), &data); err != nil {
		return 0, GetLineValue(err)
	}
	return data[0], nil
}

// Wait blocks until an event is ready to read or timeout elapses, and
// reports whether an event is ready. A negative timeout waits forever.
func (h *LineEventHandle) Wait(timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(h.file.Fd()), Events: unix.POLLIN}}
	ms := pollTimeout(timeout)
	for {
		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return Fail[bool](err)
		}
		return n > 0, nil
	}
}

// pollTimeout converts d to poll(2) milliseconds, rounding up so that a
// short positive timeout still blocks.
func pollTimeout(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}

// ReadEvent reads the next event, blocking until one is available.
func (h *LineEventHandle) ReadEvent() (LineEvent, error) {
	ed, err := h.ioc.readEvent(h.file.Fd())
	if err != nil {
		return Fail[LineEvent](err)
	}

	return LineEvent{
		Offset:    h.offset,
		Timestamp: time.Duration(ed.Timestamp),
		Type:      EventType(ed.ID),
	}, nil
}

func (h *LineEventHandle) Close() error {
	if err := h.file.Close(); err != nil {
		return FromIO(err)
	}
	return nil
}
