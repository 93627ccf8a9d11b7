// Package ctl wires a track, the control loop and its surfaces into a
// running controller.
package ctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"nyiyui.ca/hato/dcatc"
	"nyiyui.ca/hato/dcatc/config"
	"nyiyui.ca/hato/dcatc/conn"
	"nyiyui.ca/hato/dcatc/kujo"
	"nyiyui.ca/hato/dcatc/runtime"
	"nyiyui.ca/hato/dcatc/sakuragi"
	"nyiyui.ca/hato/dcatc/sensor"
	"nyiyui.ca/hato/dcatc/store"
	"nyiyui.ca/hato/dcatc/topology"
	"nyiyui.ca/hato/dcatc/ui"
)

// ErrCheck wraps configuration errors found before anything runs.
var ErrCheck = errors.New("check")

// Track is what the controller drives: a line controller board or the
// simulator.
type Track interface {
	SetDutyCycle(slot dcatc.SlotID, duty int, dir dcatc.Direction)
	SetRoute(slot dcatc.SlotID, from, to dcatc.StopID)
	// Run reports start of day and then every change to sink until ctx is done.
	Run(ctx context.Context, sink conn.Sink) error
}

type Conf struct {
	Settings config.Settings
	Layout   *topology.Layout
	Headless bool
}

// Tunables returns the saved tunables if there are valid ones, else fallback.
func Tunables(db *store.Store, fallback config.Config) config.Config {
	saved, ok, err := db.Load()
	switch {
	case err != nil:
		zap.S().Warnw("load saved tunables", "err", err)
	case !ok:
		zap.S().Infow("no saved tunables")
	case saved.Validate() != nil:
		zap.S().Warnw("saved tunables invalid, ignoring", "saved", saved, "err", saved.Validate())
	default:
		zap.S().Infow("loaded saved tunables", "tunables", saved)
		return saved
	}
	return fallback
}

// Main runs the controller until ctx is done, the track goes away or the
// user quits the panel.
func Main(ctx context.Context, conf Conf, track Track) error {
	s := conf.Settings
	db, err := store.Open(s.DB)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			zap.S().Errorw("close db", "err", err)
		}
	}()
	cfgStore, err := config.NewStore(Tunables(db, s.Tunables), db)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCheck, err)
	}

	var trace io.Writer
	if s.Trace != "" {
		f, err := os.Create(s.Trace)
		if err != nil {
			return fmt.Errorf("create trace: %w", err)
		}
		defer f.Close()
		trace = f
	}

	reg := sensor.NewRegistry(conf.Layout.Natures())
	loop, err := runtime.New(runtime.Conf{
		Layout:         conf.Layout,
		TickPeriod:     s.TickPeriod(),
		HandshakeGrace: s.HandshakeGrace(),
		Registry:       reg,
		Store:          cfgStore,
		Driver:         track,
		Points:         track,
		Trace:          trace,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCheck, err)
	}
	defer loop.Close()
	zap.S().Infow("starting",
		"run", loop.RunID(),
		"layout", conf.Layout.Name,
		"tunables", cfgStore.Get())

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	errs := make(chan error, 3)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- fmt.Errorf("track: %w", track.Run(ctx, reg))
	}()
	go func() {
		defer wg.Done()
		loop.Run(ctx)
		allStop(track, conf.Layout)
	}()

	if s.HTTP != "" {
		k := kujo.NewServer(loop)
		sk := sakuragi.NewServer(loop.Snapshots)
		mux := http.NewServeMux()
		mux.Handle("/events", k)
		mux.Handle("/", sk)
		srv := &http.Server{Addr: s.HTTP, Handler: mux}
		wg.Add(4)
		go func() {
			defer wg.Done()
			k.Run(ctx)
		}()
		go func() {
			defer wg.Done()
			sk.Run(ctx)
		}()
		go func() {
			defer wg.Done()
			zap.S().Infow("serving http", "addr", s.HTTP)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("http: %w", err)
			}
		}()
		go func() {
			defer wg.Done()
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if conf.Headless {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	panelErrs := make(chan error, 1)
	go func() { panelErrs <- ui.NewPanel(loop, loop.Snapshots).Run(ctx) }()
	select {
	case err := <-panelErrs:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case err := <-errs:
		cancel()
		<-panelErrs
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

// allStop cuts power to every slot.
func allStop(track Track, y *topology.Layout) {
	for i, sd := range y.Slots {
		track.SetDutyCycle(dcatc.SlotID(i), 0, sd.Heading)
	}
	zap.S().Infow("all stop")
}
