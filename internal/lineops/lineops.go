package lineops

import (
	"context"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/larsks/gpiocdev/internal/cdev"
	"github.com/larsks/gpiocdev/internal/linespec"
)

const (
	DefaultConsumer = "gpiocdev"

	// pollInterval bounds how long Watch waits before rechecking ctx.
	pollInterval = 100 * time.Millisecond
)

// ChipSummary describes a chip and where it lives.
type ChipSummary struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Label    string `json:"label"`
	NumLines uint32 `json:"num_lines"`
}

// LineSummary describes the current state of a line.
type LineSummary struct {
	Offset    uint32 `json:"offset"`
	Name      string `json:"name"`
	Consumer  string `json:"consumer"`
	Direction string `json:"direction"`
	Used      bool   `json:"used"`
	Flags     string `json:"flags"`
}

// LineValue is the value read from a single line.
type LineValue struct {
	Offset uint32 `json:"offset"`
	Value  uint8  `json:"value"`
}

// EventHandler receives each event reported by Watch. Returning an error
// stops the watch.
type EventHandler func(cdev.LineEvent) error

// Service performs one-shot GPIO operations. Every chip and line it opens
// is closed before the method returns; errors from the binding are
// returned unchanged.
type Service struct {
	consumer string
	open     func(path string) (*cdev.Chip, error)
	list     func() ([]string, error)
}

func New(consumer string) *Service {
	if consumer == "" {
		consumer = DefaultConsumer
	}
	return &Service{
		consumer: consumer,
		open:     cdev.Open,
		list:     cdev.ChipPaths,
	}
}

// ResolveChip maps "0", "gpiochip0" or "/dev/gpiochip0" to a device path.
func ResolveChip(name string) string {
	if filepath.IsAbs(name) || strings.Contains(name, "/") {
		return name
	}
	if _, err := strconv.ParseUint(name, 10, 32); err == nil {
		return "/dev/gpiochip" + name
	}
	return filepath.Join("/dev", name)
}

// IsChipName reports whether name is a bare chip number ("0") or a chip
// device name ("gpiochip0"). Paths are never chip names.
func IsChipName(name string) bool {
	digits := strings.TrimPrefix(name, "gpiochip")
	if digits == "" {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func summarize(chip *cdev.Chip) ChipSummary {
	return ChipSummary{
		Path:     chip.Path(),
		Name:     chip.Name(),
		Label:    chip.Label(),
		NumLines: chip.NumLines(),
	}
}

func summarizeLine(li cdev.LineInfo) LineSummary {
	return LineSummary{
		Offset:    li.Offset,
		Name:      li.Name,
		Consumer:  li.Consumer,
		Direction: li.Direction().String(),
		Used:      li.IsUsed(),
		Flags:     li.Flags.String(),
	}
}

func (s *Service) withChip(name string, fn func(*cdev.Chip) error) error {
	chip, err := s.open(ResolveChip(name))
	if err != nil {
		return err
	}
	defer chip.Close() //nolint:errcheck
	return fn(chip)
}

// ListChips returns a summary of every chip in /dev.
func (s *Service) ListChips() ([]ChipSummary, error) {
	paths, err := s.list()
	if err != nil {
		return nil, err
	}

	chips := make([]ChipSummary, 0, len(paths))
	for _, path := range paths {
		summary, err := s.ChipInfo(path)
		if err != nil {
			return nil, err
		}
		chips = append(chips, summary)
	}
	return chips, nil
}

func (s *Service) ChipInfo(chip string) (ChipSummary, error) {
	var summary ChipSummary
	err := s.withChip(chip, func(c *cdev.Chip) error {
		summary = summarize(c)
		return nil
	})
	return summary, err
}

// Lines returns the state of every line on chip.
func (s *Service) Lines(chip string) ([]LineSummary, error) {
	var lines []LineSummary
	err := s.withChip(chip, func(c *cdev.Chip) error {
		infos, err := c.LineInfos()
		if err != nil {
			return err
		}
		lines = make([]LineSummary, len(infos))
		for i, li := range infos {
			lines[i] = summarizeLine(li)
		}
		return nil
	})
	return lines, err
}

func (s *Service) Line(chip string, offset uint32) (LineSummary, error) {
	var line LineSummary
	err := s.withChip(chip, func(c *cdev.Chip) error {
		li, err := c.LineInfo(offset)
		if err != nil {
			return err
		}
		line = summarizeLine(li)
		return nil
	})
	return line, err
}

// Get reads each line as an input.
func (s *Service) Get(chip string, specs []*linespec.LineSpec) ([]LineValue, error) {
	values := make([]LineValue, 0, len(specs))
	err := s.withChip(chip, func(c *cdev.Chip) error {
		for _, spec := range specs {
			handle, err := c.RequestLine(spec.Offset, spec.RequestFlags(false), 0, s.consumer)
			if err != nil {
				return err
			}
			value, err := handle.Value()
			handle.Close() //nolint:errcheck
			if err != nil {
				return err
			}
			values = append(values, LineValue{Offset: spec.Offset, Value: value})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// Set drives each line to its value and keeps the lines requested for
// hold before releasing them. The kernel may reset a line once released.
func (s *Service) Set(ctx context.Context, chip string, assignments []*linespec.Assignment, hold time.Duration) error {
	return s.withChip(chip, func(c *cdev.Chip) error {
		handles := make([]*cdev.LineHandle, 0, len(assignments))
		defer func() {
			for _, h := range handles {
				h.Close() //nolint:errcheck
			}
		}()

		for _, a := range assignments {
			handle, err := c.RequestLine(a.Offset, a.RequestFlags(true), a.Value, s.consumer)
			if err != nil {
				return err
			}
			handles = append(handles, handle)
			if err := handle.SetValue(a.Value); err != nil {
				return err
			}
		}

		if hold > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(hold):
			}
		}
		return nil
	})
}

// Watch requests edge events for spec and calls fn for each event until
// ctx is cancelled or fn returns an error.
func (s *Service) Watch(ctx context.Context, chip string, spec *linespec.LineSpec, edges cdev.EdgeFlags, fn EventHandler) error {
	return s.withChip(chip, func(c *cdev.Chip) error {
		handle, err := c.RequestEvents(spec.Offset, spec.RequestFlags(false), edges, s.consumer)
		if err != nil {
			return err
		}
		defer handle.Close() //nolint:errcheck

		log.Printf("watching %s line %d for %s edges", c.Path(), spec.Offset, edges)
		for {
			if ctx.Err() != nil {
				return nil
			}

			ready, err := handle.Wait(pollInterval)
			if err != nil {
				return err
			}
			if !ready {
				continue
			}

			event, err := handle.ReadEvent()
			if err != nil {
				return err
			}
			if err := fn(event); err != nil {
				return err
			}
		}
	})
}
