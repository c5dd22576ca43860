package cdev

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev/uapi"
	"golang.org/x/sys/unix"
)

const (
	devDir     = "/dev"
	chipPrefix = "gpiochip"

	// MaxLines is the largest number of lines a single handle request
	// may cover.
	MaxLines = 64
)

type ChipInfo struct {
	Name     string
	Label    string
	NumLines uint32
}

type LineInfo struct {
	Offset   uint32
	Name     string
	Consumer string
	Flags    LineFlags
}

// IsUsed reports whether the line is in use by the kernel or another
// consumer.
func (li LineInfo) IsUsed() bool {
	return li.Flags&LineUsed != 0
}

func (li LineInfo) Direction() Direction {
	if li.Flags&LineIsOut != 0 {
		return Output
	}
	return Input
}

// Chip is an open GPIO character device.
type Chip struct {
	path string
	file *os.File
	info ChipInfo
	ioc  ioctler
}

// ChipPaths returns the paths of the gpiochip devices in /dev.
func ChipPaths() ([]string, error) {
	return chipPaths(devDir)
}

func chipPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ReadDevDirectory(err)
	}

	var paths []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), chipPrefix) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths, nil
}

// Chips opens every chip returned by ChipPaths. If any chip fails to
// open, the chips opened so far are closed and the error is returned.
func Chips() ([]*Chip, error) {
	paths, err := ChipPaths()
	if err != nil {
		return nil, err
	}
	return openAll(paths, kernel{})
}

func openAll(paths []string, ioc ioctler) ([]*Chip, error) {
	chips := make([]*Chip, 0, len(paths))
	for _, path := range paths {
		chip, err := open(path, ioc)
		if err != nil {
			for _, c := range chips {
				c.Close() //nolint:errcheck
			}
			return nil, err
		}
		chips = append(chips, chip)
	}
	return chips, nil
}

// Open opens the chip at path and reads its chip info.
func Open(path string) (*Chip, error) {
	return open(path, kernel{})
}

func open(path string, ioc ioctler) (*Chip, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return Fail[*Chip](OpenChip(path, err))
	}

	ci, err := ioc.chipInfo(file.Fd())
	if err != nil {
		file.Close() //nolint:errcheck
		return Fail[*Chip](GetChipInfo(path, err))
	}

	return &Chip{
		path: path,
		file: file,
		info: ChipInfo{
			Name:     cstring(ci.Name[:]),
			Label:    cstring(ci.Label[:]),
			NumLines: ci.Lines,
		},
		ioc: ioc,
	}, nil
}

func (c *Chip) Path() string {
	return c.path
}

func (c *Chip) Name() string {
	return c.info.Name
}

func (c *Chip) Label() string {
	return c.info.Label
}

func (c *Chip) NumLines() uint32 {
	return c.info.NumLines
}

func (c *Chip) Info() ChipInfo {
	return c.info
}

func (c *Chip) String() string {
	return fmt.Sprintf("%s [%s] (%d lines)", c.info.Name, c.info.Label, c.info.NumLines)
}

func (c *Chip) Close() error {
	if err := c.file.Close(); err != nil {
		return FromIO(err)
	}
	return nil
}

func (c *Chip) checkOffset(offset uint32) error {
	if offset >= c.info.NumLines {
		return OffsetOutOfRange()
	}
	return nil
}

// LineInfo returns the current state of the line at offset.
func (c *Chip) LineInfo(offset uint32) (LineInfo, error) {
	if err := c.checkOffset(offset); err != nil {
		return LineInfo{}, err
	}

	li, err := c.ioc.lineInfo(c.file.Fd(), offset)
	if err != nil {
		return LineInfo{}, LineinfoIoctl(err)
	}

	return LineInfo{
		Offset:   offset,
		Name:     cstring(li.Name[:]),
		Consumer: cstring(li.Consumer[:]),
		Flags:    LineFlags(li.Flags),
	}, nil
}

// LineInfos returns the state of every line on the chip.
func (c *Chip) LineInfos() ([]LineInfo, error) {
	infos := make([]LineInfo, 0, c.info.NumLines)
	for offset := uint32(0); offset < c.info.NumLines; offset++ {
		li, err := c.LineInfo(offset)
		if err != nil {
			return nil, err
		}
		infos = append(infos, li)
	}
	return infos, nil
}

// RequestLines requests a handle covering offsets. Output lines are driven
// to defaults, which may be shorter than offsets.
func (c *Chip) RequestLines(offsets []uint32, flags RequestFlags, defaults []uint8, consumer string) (*LineHandle, error) {
	if len(offsets) > MaxLines {
		return nil, LinehandleRequestIoctl(unix.EINVAL)
	}
	if len(defaults) > len(offsets) {
		return nil, OffsetOutOfRange()
	}

	req := uapi.HandleRequest{
		Flags: uapi.HandleFlag(flags),
		Lines: uint32(len(offsets)),
	}
	for i, offset := range offsets {
		if err := c.checkOffset(offset); err != nil {
			return nil, err
		}
		req.Offsets[i] = offset
	}
	copy(req.DefaultValues[:], defaults)
	copy(req.Consumer[:len(req.Consumer)-1], consumer)

	if err := c.ioc.lineHandle(c.file.Fd(), &req); err != nil {
		return nil, LinehandleRequestIoctl(err)
	}

	return &LineHandle{
		file:    os.NewFile(uintptr(req.Fd), fmt.Sprintf("%s:linehandle", c.path)),
		offsets: append([]uint32(nil), offsets...),
		flags:   flags,
		ioc:     c.ioc,
	}, nil
}

// RequestLine requests a handle for a single line.
func (c *Chip) RequestLine(offset uint32, flags RequestFlags, value uint8, consumer string) (*LineHandle, error) {
	return c.RequestLines([]uint32{offset}, flags, []uint8{value}, consumer)
}

// RequestEvents requests edge events for the line at offset. The line is
// always requested as an input.
func (c *Chip) RequestEvents(offset uint32, flags RequestFlags, edges EdgeFlags, consumer string) (*LineEventHandle, error) {
	if err := c.checkOffset(offset); err != nil {
		return nil, err
	}

	flags = (flags &^ RequestOutput) | RequestInput
	req := uapi.EventRequest{
		Offset:      offset,
		HandleFlags: uapi.HandleFlag(flags),
		EventFlags:  uapi.EventFlag(edges),
	}
	copy(req.Consumer[:len(req.Consumer)-1], consumer)

	if err := c.ioc.lineEvent(c.file.Fd(), &req); err != nil {
		return nil, LineeventIoctl(err)
	}

	return &LineEventHandle{
		file:   os.NewFile(uintptr(req.Fd), fmt.Sprintf("%s:lineevent", c.path)),
		offset: offset,
		edges:  edges,
		ioc:    c.ioc,
	}, nil
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
