package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"nyiyui.ca/hato/dcatc/config"
	"nyiyui.ca/hato/dcatc/ctl"
	"nyiyui.ca/hato/dcatc/sim"
	"nyiyui.ca/hato/dcatc/topology"
)

func main() {
	defer zap.S().Sync()
	level := zap.LevelFlag("log-level", zap.DebugLevel, "set log level")
	configPath := flag.String("config", "", "settings file (JSON, or YAML if .yaml/.yml)")
	topologyName := flag.String("topology", topology.Selected.Name, "layout to simulate (1to1, 1to2, 2to2, loop)")
	httpAddr := flag.String("http", "", "status page and event stream address")
	dbPath := flag.String("db", ":memory:", "tunables database")
	tracePath := flag.String("trace", "", "write a JSON trace of every tick")
	headless := flag.Bool("headless", false, "run without the terminal panel")
	flag.Parse()
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(*level)
	if !*headless {
		cfg.OutputPaths = []string{"dcatc-sim.log"}
	}
	dev, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(dev)

	y, ok := topology.ByName(*topologyName)
	if !ok {
		zap.S().Errorf("unknown topology %q", *topologyName)
		os.Exit(3)
	}

	s := config.DefaultSettings()
	if *configPath != "" {
		s, err = config.LoadSettings(*configPath)
		if err != nil {
			zap.S().Fatalf("%s", err)
		}
	}
	s.DB = *dbPath
	if *httpAddr != "" {
		s.HTTP = *httpAddr
	}
	if *tracePath != "" {
		s.Trace = *tracePath
	}

	track := sim.New(sim.DefaultConf(y))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	zap.S().Infof("starting simulation…")
	err = ctl.Main(ctx, ctl.Conf{
		Settings: s,
		Layout:   y,
		Headless: *headless,
	}, track)
	for _, f := range track.Faults() {
		zap.S().Warnw("fault during run", "fault", f.String())
	}
	if errors.Is(err, ctl.ErrCheck) {
		zap.S().Errorf("%s", err)
		zap.S().Sync()
		os.Exit(3)
	}
	if err != nil {
		zap.S().Fatalf("%s", err)
	}
}
