// Package sakuragi serves a status page and a duty cycle chart.
package sakuragi

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/wcharczuk/go-chart/v2"
	"go.uber.org/zap"

	"nyiyui.ca/hato/dcatc"
	"nyiyui.ca/hato/dcatc/notify"
	"nyiyui.ca/hato/dcatc/runtime"
)

//go:embed index.html
var templates embed.FS

// historyLen is how many ticks of duty cycles the chart shows.
const historyLen = 600

type sample struct {
	tick   uint64
	duties []int
}

type Server struct {
	sm        *http.ServeMux
	t         *template.Template
	snapshots *notify.Multiplexer[runtime.Snapshot]

	lock    sync.Mutex
	latest  runtime.Snapshot
	history []sample
}

func NewServer(snapshots *notify.Multiplexer[runtime.Snapshot]) *Server {
	s := &Server{
		sm:        http.NewServeMux(),
		snapshots: snapshots,
	}
	s.t = template.Must(template.New("index").Funcs(sprig.FuncMap()).Funcs(template.FuncMap{
		"glyph": func(st dcatc.SensorState) string {
			return string(st.Glyph())
		},
		"sensorName": func(i int) string {
			return dcatc.SensorID(i).String()
		},
	}).ParseFS(templates, "*.html"))
	s.sm.HandleFunc("/", s.handleIndex)
	s.sm.HandleFunc("/duty.png", s.handleDuty)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.sm.ServeHTTP(w, r)
}

// Run records snapshots until ctx is done.
func (s *Server) Run(ctx context.Context) {
	ch := make(chan runtime.Snapshot, 16)
	s.snapshots.Subscribe("sakuragi", ch)
	defer s.snapshots.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			s.Record(snap)
		}
	}
}

// Record keeps snap as the latest state and adds its duty cycles to the history.
func (s *Server) Record(snap runtime.Snapshot) {
	duties := make([]int, len(snap.Slots))
	for i, ss := range snap.Slots {
		duties[i] = ss.Duty
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.latest = snap
	s.history = append(s.history, sample{tick: snap.Tick, duties: duties})
	if len(s.history) > historyLen {
		s.history = s.history[len(s.history)-historyLen:]
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.lock.Lock()
	latest := s.latest
	s.lock.Unlock()
	var buf bytes.Buffer
	err := s.t.ExecuteTemplate(&buf, "index", map[string]interface{}{
		"s":   latest,
		"now": time.Now(),
	})
	if err != nil {
		zap.S().Errorw("sakuragi: render index", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) dutyChart() (*chart.Chart, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if len(s.history) < 2 {
		return nil, false
	}
	last := s.history[len(s.history)-1].tick
	slots := len(s.history[0].duties)
	series := make([]chart.Series, 0, slots)
	for slot := 0; slot < slots; slot++ {
		xValues := make([]float64, 0, len(s.history))
		yValues := make([]float64, 0, len(s.history))
		for _, sm := range s.history {
			if slot >= len(sm.duties) {
				continue
			}
			xValues = append(xValues, -float64(last-sm.tick))
			yValues = append(yValues, float64(sm.duties[slot]))
		}
		series = append(series, chart.ContinuousSeries{
			Name:    dcatc.SlotID(slot).String(),
			XValues: xValues,
			YValues: yValues,
		})
	}
	graph := &chart.Chart{
		Height: 300,
		XAxis: chart.XAxis{
			Name:  "ticks",
			Range: &chart.ContinuousRange{Min: -historyLen, Max: 0},
		},
		YAxis: chart.YAxis{
			Name:  "duty %",
			Range: &chart.ContinuousRange{Min: 0, Max: dcatc.MaxDuty},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(graph)}
	return graph, true
}

func (s *Server) handleDuty(w http.ResponseWriter, r *http.Request) {
	graph, ok := s.dutyChart()
	if !ok {
		http.Error(w, "no history yet", http.StatusServiceUnavailable)
		return
	}
	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		zap.S().Errorw("sakuragi: render chart", "err", err)
		http.Error(w, fmt.Sprintf("render chart: %s", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}
