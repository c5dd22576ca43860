package cdev

import (
	"github.com/warthog618/go-gpiocdev/uapi"
)

// ioctler issues the GPIO v1 uAPI calls against an open descriptor.
type ioctler interface {
	chipInfo(fd uintptr) (uapi.ChipInfo, error)
	lineInfo(fd uintptr, offset uint32) (uapi.LineInfo, error)
	lineHandle(fd uintptr, req *uapi.HandleRequest) error
	lineEvent(fd uintptr, req *uapi.EventRequest) error
	getValues(fd uintptr, data *uapi.HandleData) error
	setValues(fd uintptr, data uapi.HandleData) error
	readEvent(fd uintptr) (uapi.EventData, error)
}

type kernel struct{}

func (kernel) chipInfo(fd uintptr) (uapi.ChipInfo, error) {
	return uapi.GetChipInfo(fd)
}

func (kernel) lineInfo(fd uintptr, offset uint32) (uapi.LineInfo, error) {
	return uapi.GetLineInfo(fd, int(offset))
}

func (kernel) lineHandle(fd uintptr, req *uapi.HandleRequest) error {
	return uapi.GetLineHandle(fd, req)
}

func (kernel) lineEvent(fd uintptr, req *uapi.EventRequest) error {
	return uapi.GetLineEvent(fd, req)
}

func (kernel) getValues(fd uintptr, data *uapi.HandleData) error {
	return uapi.GetLineValues(fd, data)
}

func (kernel) setValues(fd uintptr, data uapi.HandleData) error {
	return uapi.SetLineValues(fd, data)
}

func (kernel) readEvent(fd uintptr) (uapi.EventData, error) {
	return uapi.ReadEvent(fd)
}
