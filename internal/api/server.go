package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/larsks/gpiocdev/internal/cdev"
	"github.com/larsks/gpiocdev/internal/httpserver"
	"github.com/larsks/gpiocdev/internal/lineops"
	"github.com/larsks/gpiocdev/internal/linespec"
	"github.com/larsks/gpiocdev/internal/mqtt"
)

// Lines is the set of GPIO operations the server exposes.
type Lines interface {
	ListChips() ([]lineops.ChipSummary, error)
	ChipInfo(chip string) (lineops.ChipSummary, error)
	Lines(chip string) ([]lineops.LineSummary, error)
	Line(chip string, offset uint32) (lineops.LineSummary, error)
	Get(chip string, specs []*linespec.LineSpec) ([]lineops.LineValue, error)
	Set(ctx context.Context, chip string, assignments []*linespec.Assignment, hold time.Duration) error
	Watch(ctx context.Context, chip string, spec *linespec.LineSpec, edges cdev.EdgeFlags, fn lineops.EventHandler) error
}

// EventPublisher forwards line events somewhere, typically an MQTT broker.
type EventPublisher interface {
	PublishLineEvent(chipPath string, ev cdev.LineEvent) error
}

// Server represents the API server.
type Server struct {
	config    *Config
	lines     Lines
	publisher EventPublisher
	watches   []*linespec.LineSpec
	edges     cdev.EdgeFlags
	router    *chi.Mux

	// held while value requests have lines requested
	mutex sync.Mutex
}

// NewServer creates a server backed by the chip devices in /dev.
func NewServer(cfg *Config) (*Server, error) {
	var publisher EventPublisher
	if cfg.MQTT.ServerURL != "" && len(cfg.Watch) > 0 {
		client, err := mqtt.NewClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMQTTInitFailed, err)
		}
		publisher = client
	}

	return newServer(cfg, lineops.New(cfg.Consumer), publisher, true)
}

func newServer(cfg *Config, lines Lines, publisher EventPublisher, production bool) (*Server, error) {
	watches, err := linespec.ParseAll(cfg.Watch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatchConfig, err)
	}

	edges, err := linespec.ParseEdges(cfg.WatchEdge)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatchConfig, err)
	}

	s := &Server{
		config:    cfg,
		lines:     lines,
		publisher: publisher,
		watches:   watches,
		edges:     edges,
		router:    chi.NewRouter(),
	}

	if production {
		s.router.Use(middleware.Logger)
	}
	s.router.Use(middleware.Recoverer)

	if len(cfg.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	s.router.Get("/chips", s.listChipsHandler)
	s.router.Route("/chips/{chip}", func(r chi.Router) {
		r.Use(s.checkChip)
		r.Get("/", s.chipHandler)
		r.Get("/lines", s.linesHandler)
		r.Route("/lines/{offset}", func(r chi.Router) {
			r.Use(s.parseOffset)
			r.Get("/", s.lineHandler)
			r.Get("/value", s.getValueHandler)
			r.Put("/value", s.setValueHandler)
		})
	})

	return s, nil
}

// Router returns the HTTP handler serving the API.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the watchers and the HTTP server until ctx is cancelled or
// the process receives SIGINT/SIGTERM.
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	s.startWatchers(ctx, &wg)
	defer func() {
		cancel()
		wg.Wait()
	}()

	return httpserver.StartFromConfig(ctx, s.config, s.router)
}

// Close disconnects from the MQTT broker, if any.
func (s *Server) Close() {
	if client, ok := s.publisher.(*mqtt.Client); ok {
		client.Disconnect(250)
	}
}

// startWatchers publishes events for each configured watch line until ctx
// is cancelled. A watcher that fails is logged and not restarted.
func (s *Server) startWatchers(ctx context.Context, wg *sync.WaitGroup) {
	if s.publisher == nil {
		if len(s.watches) > 0 {
			log.Printf("watch lines configured but no mqtt server; not watching")
		}
		return
	}

	chipPath := lineops.ResolveChip(s.config.Chip)
	for _, spec := range s.watches {
		wg.Add(1)
		go func(spec *linespec.LineSpec) {
			defer wg.Done()
			err := s.lines.Watch(ctx, s.config.Chip, spec, s.edges, func(ev cdev.LineEvent) error {
				if err := s.publisher.PublishLineEvent(chipPath, ev); err != nil {
					log.Printf("failed to publish event for line %d: %v", ev.Offset, err)
				}
				return nil
			})
			if err != nil {
				log.Printf("watch on %s line %d stopped: %v", chipPath, spec.Offset, err)
			}
		}(spec)
	}
}
