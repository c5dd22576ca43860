package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/larsks/gpiocdev/internal/cdev"
	"github.com/larsks/gpiocdev/internal/lineops"
	"github.com/larsks/gpiocdev/internal/linespec"
)

type contextKey string

const offsetKey contextKey = "offset"

// APIResponse is the envelope for every response.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type valueRequest struct {
	Value     *int `json:"value"`
	ActiveLow bool `json:"active_low"`
}

func (s *Server) sendResponse(w http.ResponseWriter, resp APIResponse, httpCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func (s *Server) sendData(w http.ResponseWriter, data any) {
	s.sendResponse(w, APIResponse{Status: "ok", Data: data}, http.StatusOK)
}

// sendError reports err with the status from statusForError. GPIO errors
// carry their kind so clients need not parse the message.
func (s *Server) sendError(w http.ResponseWriter, err error) {
	resp := APIResponse{Status: "error", Message: err.Error()}
	if kind, ok := cdev.KindOf(err); ok {
		resp.Kind = kind.String()
	}

	code := statusForError(err)
	if code >= http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	s.sendResponse(w, resp, code)
}

// statusForError maps an error to an HTTP status code.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrInvalidOffset),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, linespec.ErrInvalidValue):
		return http.StatusBadRequest
	}

	if errors.Is(err, ErrUnknownChip) {
		return http.StatusNotFound
	}

	var gerr *cdev.Error
	if !errors.As(err, &gerr) {
		return http.StatusInternalServerError
	}

	if gerr.Kind() == cdev.KindOffsetOutOfRange {
		return http.StatusBadRequest
	}

	errno, ok := gerr.Errno()
	if !ok {
		return http.StatusInternalServerError
	}

	switch {
	case gerr.Kind() == cdev.KindOpenChip && errno == syscall.ENOENT:
		return http.StatusNotFound
	case errno == syscall.EACCES || errno == syscall.EPERM:
		return http.StatusForbidden
	case errno == syscall.EBUSY:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// checkChip rejects {chip} URL parameters that do not name a GPIO chip, so
// that no other device node is ever opened.
func (s *Server) checkChip(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		param := chi.URLParam(r, "chip")
		if !lineops.IsChipName(param) {
			s.sendError(w, fmt.Errorf("%w: %s", ErrUnknownChip, param))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// parseOffset validates the {offset} URL parameter and stores it in the
// request context.
func (s *Server) parseOffset(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		param := chi.URLParam(r, "offset")
		offset, err := linespec.ParseOffset(param)
		if err != nil {
			s.sendError(w, fmt.Errorf("%w: %s", ErrInvalidOffset, param))
			return
		}

		ctx := context.WithValue(r.Context(), offsetKey, offset)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func offsetFromContext(ctx context.Context) uint32 {
	offset, _ := ctx.Value(offsetKey).(uint32)
	return offset
}

func lineSpec(offset uint32, activeLow bool) *linespec.LineSpec {
	spec := &linespec.LineSpec{Offset: offset, PullMode: linespec.PullAuto}
	if activeLow {
		spec.Polarity = linespec.ActiveLow
	}
	return spec
}

func (s *Server) listChipsHandler(w http.ResponseWriter, r *http.Request) {
	chips, err := s.lines.ListChips()
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendData(w, chips)
}

func (s *Server) chipHandler(w http.ResponseWriter, r *http.Request) {
	chip, err := s.lines.ChipInfo(chi.URLParam(r, "chip"))
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendData(w, chip)
}

func (s *Server) linesHandler(w http.ResponseWriter, r *http.Request) {
	lines, err := s.lines.Lines(chi.URLParam(r, "chip"))
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendData(w, lines)
}

func (s *Server) lineHandler(w http.ResponseWriter, r *http.Request) {
	line, err := s.lines.Line(chi.URLParam(r, "chip"), offsetFromContext(r.Context()))
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendData(w, line)
}

func (s *Server) getValueHandler(w http.ResponseWriter, r *http.Request) {
	activeLow, _ := strconv.ParseBool(r.URL.Query().Get("active_low"))
	spec := lineSpec(offsetFromContext(r.Context()), activeLow)

	s.mutex.Lock()
	values, err := s.lines.Get(chi.URLParam(r, "chip"), []*linespec.LineSpec{spec})
	s.mutex.Unlock()

	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendData(w, values[0])
}

func (s *Server) setValueHandler(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}
	if req.Value == nil {
		s.sendError(w, fmt.Errorf("%w: value is required", ErrInvalidRequest))
		return
	}
	if *req.Value != 0 && *req.Value != 1 {
		s.sendError(w, fmt.Errorf("%w: %d", linespec.ErrInvalidValue, *req.Value))
		return
	}

	offset := offsetFromContext(r.Context())
	assignment := &linespec.Assignment{LineSpec: *lineSpec(offset, req.ActiveLow), Value: uint8(*req.Value)}

	s.mutex.Lock()
	err := s.lines.Set(r.Context(), chi.URLParam(r, "chip"), []*linespec.Assignment{assignment}, 0)
	s.mutex.Unlock()

	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendData(w, lineops.LineValue{Offset: offset, Value: assignment.Value})
}
