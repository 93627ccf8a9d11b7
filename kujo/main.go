// Package kujo streams control loop state as server-sent events.
package kujo

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"

	"nyiyui.ca/hato/dcatc/notify"
	"nyiyui.ca/hato/dcatc/runtime"
)

const (
	StreamSnapshot  = "snapshot"
	StreamOccupancy = "occupancy"
)

type Server struct {
	s         *sse.Server
	snapshots *notify.Multiplexer[runtime.Snapshot]
	occupancy *notify.Multiplexer[runtime.OccupancyChange]
}

func NewServer(l *runtime.Loop) *Server {
	s := &Server{
		s:         sse.New(),
		snapshots: l.Snapshots,
		occupancy: l.Occupancy,
	}
	// a snapshot per tick would otherwise be kept forever
	s.s.AutoReplay = false
	s.s.CreateStream(StreamSnapshot)
	s.s.CreateStream(StreamOccupancy)
	return s
}

// Run publishes events until ctx is done.
func (s *Server) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		forward(ctx, s.s, StreamSnapshot, s.snapshots)
	}()
	go func() {
		defer wg.Done()
		forward(ctx, s.s, StreamOccupancy, s.occupancy)
	}()
	wg.Wait()
	s.s.Close()
}

func forward[E any](ctx context.Context, s *sse.Server, stream string, m *notify.Multiplexer[E]) {
	ch := make(chan E, 16)
	m.Subscribe("kujo "+stream, ch)
	defer m.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-ch:
			data, err := json.Marshal(e)
			if err != nil {
				zap.S().Errorw("kujo: marshal json", "stream", stream, "err", err)
				continue
			}
			s.TryPublish(stream, &sse.Event{
				Data: data,
			})
		}
	}
}

// ServeHTTP serves the streams; clients pick one with ?stream=.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.s.ServeHTTP(w, r)
}
