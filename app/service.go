package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fieldserve/dispatch/config"
	"github.com/fieldserve/dispatch/core/assign"
	"github.com/fieldserve/dispatch/core/board"
	"github.com/fieldserve/dispatch/core/events"
	coremetrics "github.com/fieldserve/dispatch/core/metrics"
	"github.com/fieldserve/dispatch/core/model"
	"github.com/fieldserve/dispatch/core/routeopt"
	"github.com/fieldserve/dispatch/infra/api"
	"github.com/fieldserve/dispatch/infra/logger"
	"github.com/fieldserve/dispatch/infra/metrics"
	"github.com/fieldserve/dispatch/infra/stream"
)

// Service wires the board, loader, live feed and both workflows together and
// runs the single consumer loop that keeps them consistent.
type Service struct {
	Board  *board.Board
	Loader *board.Loader
	Assign *assign.Workflow
	Routes *routeopt.Workflow
	Feed   *stream.Feed

	cfg  *config.Config
	sink coremetrics.BoardSink
	log  logger.Logger

	// reload requests are coalesced: the channel holds at most one pending
	// request and the limiter bounds how often a storm of structural events
	// turns into snapshot pulls.
	reloadCh chan struct{}
	limiter  *rate.Limiter

	mu       sync.RWMutex
	date     string
	viewMode model.ViewMode
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	client, err := api.NewClient(cfg.API, cfg.Auth.Provider())
	if err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}

	var sinks []coremetrics.BoardSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(nil)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket))
	}
	var sink coremetrics.BoardSink
	switch len(sinks) {
	case 0:
		sink = coremetrics.NopSink{}
	case 1:
		sink = sinks[0]
	default:
		sink = coremetrics.NewMultiSink(sinks...)
	}

	b := board.New(logger.New("board"))
	loader := board.NewLoader(client, cfg.Refresh.ActiveTechsOnly, logger.New("loader"), sink)

	svc := &Service{
		Board:    b,
		Loader:   loader,
		cfg:      cfg,
		sink:     sink,
		log:      logg,
		reloadCh: make(chan struct{}, 1),
		limiter: rate.NewLimiter(
			rate.Every(time.Duration(cfg.Refresh.MinReloadIntervalMS)*time.Millisecond),
			cfg.Refresh.ReloadBurst),
		date:     time.Now().Format("2006-01-02"),
		viewMode: model.ViewModeDay,
	}

	svc.Assign, err = assign.New(client, svc.RequestReload, logger.New("assign"), sink)
	if err != nil {
		return nil, err
	}
	svc.Routes, err = routeopt.New(client, logger.New("routeopt"), sink)
	if err != nil {
		return nil, err
	}

	mgr, err := stream.NewManager(cfg.Stream, logger.New("feed"), sink)
	if err != nil {
		return nil, fmt.Errorf("stream manager: %w", err)
	}
	svc.Feed, err = mgr.Connect(cfg.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("feed connect: %w", err)
	}
	return svc, nil
}

// SetView changes the viewed date and mode. The next reload picks them up.
func (s *Service) SetView(date string, mode model.ViewMode) {
	s.mu.Lock()
	s.date = date
	s.viewMode = mode
	s.mu.Unlock()
	s.RequestReload()
}

// View returns the current date and view mode.
func (s *Service) View() (string, model.ViewMode) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.date, s.viewMode
}

// RequestReload queues a snapshot reload. Requests arriving while one is
// already pending collapse into it.
func (s *Service) RequestReload() {
	select {
	case s.reloadCh <- struct{}{}:
	default:
	}
}

// reload pulls one snapshot and applies it. Concurrent reloads are allowed;
// the later-completing one wins as a whole.
func (s *Service) reload(ctx context.Context) {
	date, mode := s.View()
	snap := s.Loader.Load(ctx, date, mode)
	if ctx.Err() != nil {
		// The view was torn down while the pull was in flight; discard.
		return
	}
	s.Board.ApplySnapshot(snap)
}

// Run blocks until the context is cancelled, consuming feed events strictly
// in arrival order on a single goroutine. Structural events and workflow
// commits funnel through the coalesced reload channel. REST and feed errors
// degrade status only; they never stop the loop.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, ":"+s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	var ticker *time.Ticker
	var tick <-chan time.Time
	if s.cfg.Refresh.IntervalSeconds > 0 {
		ticker = time.NewTicker(time.Duration(s.cfg.Refresh.IntervalSeconds) * time.Second)
		tick = ticker.C
		defer ticker.Stop()
	}

	evs := s.Feed.Events()
	s.RequestReload() // seed the board

	for {
		select {
		case ev, ok := <-evs:
			if !ok {
				return nil
			}
			outcome := s.Board.Apply(ev)
			if err := s.sink.RecordEvent(coremetrics.EventRecord{
				Type:    events.TypeOf(ev),
				Outcome: outcome.String(),
				Time:    time.Now(),
			}); err != nil {
				s.log.Errorf("metrics error: %v", err)
			}
			if outcome == board.OutcomeReload {
				s.RequestReload()
			}
		case <-s.reloadCh:
			// The limiter wait happens off the consumer loop so a pending
			// reload never stalls event draining.
			go func() {
				if err := s.limiter.Wait(ctx); err != nil {
					return
				}
				s.reload(ctx)
			}()
		case <-tick:
			s.RequestReload()
		case <-ctx.Done():
			return nil
		}
	}
}

// Close tears the service down: the feed stops delivering, pending retries
// are cancelled and the board's change bus closes.
func (s *Service) Close() error {
	s.Feed.Close()
	s.Board.Close()
	return nil
}
