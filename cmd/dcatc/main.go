package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"nyiyui.ca/hato/dcatc/config"
	"nyiyui.ca/hato/dcatc/conn"
	"nyiyui.ca/hato/dcatc/ctl"
	"nyiyui.ca/hato/dcatc/topology"
)

type board struct {
	*conn.Board
}

// Run starts reading before asking for start of day so the reports are not missed.
func (b board) Run(ctx context.Context, sink conn.Sink) error {
	errs := make(chan error, 1)
	go func() { errs <- b.Board.Run(ctx, sink) }()
	if err := b.StartOfDay(); err != nil {
		return err
	}
	return <-errs
}

func main() {
	defer zap.S().Sync()
	level := zap.LevelFlag("log-level", zap.InfoLevel, "set log level")
	configPath := flag.String("config", "", "settings file (JSON, or YAML if .yaml/.yml)")
	port := flag.String("port", "", "serial port or glob of ports")
	httpAddr := flag.String("http", "", "status page and event stream address")
	dbPath := flag.String("db", "", "tunables database")
	tracePath := flag.String("trace", "", "write a JSON trace of every tick")
	headless := flag.Bool("headless", false, "run without the terminal panel")
	flag.Parse()
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(*level)
	if !*headless {
		// the panel owns the terminal
		cfg.OutputPaths = []string{"dcatc.log"}
	}
	dev, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(dev)

	s := config.DefaultSettings()
	if *configPath != "" {
		s, err = config.LoadSettings(*configPath)
		if err != nil {
			zap.S().Fatalf("%s", err)
		}
	}
	override(&s.Port, *port)
	override(&s.HTTP, *httpAddr)
	override(&s.DB, *dbPath)
	override(&s.Trace, *tracePath)

	b, closer, err := conn.Find(s.Port, s.Baud)
	if err != nil {
		zap.S().Fatalf("find board: %s", err)
	}
	defer closer()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err = ctl.Main(ctx, ctl.Conf{
		Settings: s,
		Layout:   topology.Selected,
		Headless: *headless,
	}, board{b})
	if errors.Is(err, ctl.ErrCheck) {
		zap.S().Errorf("%s", err)
		zap.S().Sync()
		os.Exit(3)
	}
	if err != nil {
		zap.S().Fatalf("%s", err)
	}
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
