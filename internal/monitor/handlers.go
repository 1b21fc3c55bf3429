package monitor

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"math"
	"net/http"
	"strings"

	"github.com/banshee-data/gridmap/internal/grid"
	"github.com/banshee-data/gridmap/internal/httputil"
	"github.com/banshee-data/gridmap/internal/mapping"
	"github.com/banshee-data/gridmap/internal/render"
	"github.com/banshee-data/gridmap/internal/store"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// MapInfo is the /api/map response.
type MapInfo struct {
	Source     string                   `json:"source"`
	RunID      string                   `json:"run_id,omitempty"`
	Width      int                      `json:"width"`
	Height     int                      `json:"height"`
	Resolution float64                  `json:"resolution"`
	Origin     [2]float64               `json:"origin"`
	Offset     [3]float64               `json:"offset"`
	Scans      int                      `json:"scans"`
	ElapsedMs  int64                    `json:"elapsed_ms"`
	Stats      mapping.IntegrationStats `json:"integration"`
	Occupancy  mapping.OccupancyStats   `json:"occupancy"`
}

func newMapInfo(st *MapState) MapInfo {
	sum := st.Summary
	return MapInfo{
		Source:     st.Source,
		RunID:      st.RunID,
		Width:      st.Occupancy.Width,
		Height:     st.Occupancy.Height,
		Resolution: st.Occupancy.Resolution,
		Origin:     [2]float64{st.Occupancy.Origin.X, st.Occupancy.Origin.Y},
		Offset:     [3]float64{sum.Offset.X, sum.Offset.Y, sum.Offset.Theta},
		Scans:      sum.Scans,
		ElapsedMs:  sum.Elapsed.Milliseconds(),
		Stats:      sum.Stats,
		Occupancy:  st.Stats,
	}
}

// loadedMap returns the served map or writes a 503.
func (s *Server) loadedMap(w http.ResponseWriter, r *http.Request) *MapState {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return nil
	}
	st := s.current()
	if st == nil || st.Occupancy == nil {
		httputil.ServiceUnavailable(w, "no map loaded")
		return nil
	}
	return st
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	st := s.loadedMap(w, r)
	if st == nil {
		return
	}
	httputil.WriteJSONOK(w, newMapInfo(st))
}

func (s *Server) handleMapPNG(w http.ResponseWriter, r *http.Request) {
	st := s.loadedMap(w, r)
	if st == nil {
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, render.OccupancyImage(st.Occupancy)); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to encode png: %v", err))
		return
	}
	httputil.WriteBody(w, "image/png", buf.Bytes())
}

// handleMapChart renders the known cells as a go-echarts scatter, coloured
// by occupancy.
// Query params:
//   - max_points (optional; default 20000) to reduce payload size
func (s *Server) handleMapChart(w http.ResponseWriter, r *http.Request) {
	st := s.loadedMap(w, r)
	if st == nil {
		return
	}
	maxPoints := httputil.QueryInt(r, "max_points", 20000, 100, 200000)

	m := st.Occupancy
	known := 0
	for _, o := range m.Cells() {
		if o.IsKnown() {
			known++
		}
	}
	stride := 1
	if known > maxPoints {
		stride = int(math.Ceil(float64(known) / float64(maxPoints)))
	}

	data := make([]opts.ScatterData, 0, known/stride+1)
	seen := 0
	m.Each(func(x, y int, o *mapping.Occupancy) {
		if !o.IsKnown() {
			return
		}
		seen++
		if (seen-1)%stride != 0 {
			return
		}
		c := m.GridToWorld(grid.Coord{X: x, Y: y})
		data = append(data, opts.ScatterData{Value: []interface{}{c.X, c.Y, float64(*o)}})
	})

	lo, hi := m.Bounds()
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "gridmap", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Occupancy Grid",
			Subtitle: fmt.Sprintf("source=%s points=%d stride=%d", st.Source, len(data), stride),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: lo.X, Max: hi.X, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: lo.Y, Max: hi.Y, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#ffffff", "#bdbdbd", "#636363", "#000000"}},
		}),
	)
	scatter.AddSeries("occupancy", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	httputil.WriteBody(w, "text/html; charset=utf-8", buf.Bytes())
}

// handleRuns lists recorded builds, newest first.
// Query params:
//   - limit (optional, default 10, at most 100)
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.runs == nil {
		httputil.ServiceUnavailable(w, "no database configured")
		return
	}
	runs, err := s.runs.ListRuns(httputil.QueryInt(r, "limit", 10, 1, 100))
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*store.BuildRun{}
	}
	httputil.WriteJSONOK(w, runs)
}

// handleRun serves one recorded build:
//   - GET    /api/runs/<run_id>          run record
//   - DELETE /api/runs/<run_id>          removes the run and its snapshots
//   - GET    /api/runs/<run_id>/map.png  latest stored snapshot, rendered
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		httputil.ServiceUnavailable(w, "no database configured")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" || (sub != "" && sub != "map.png") {
		httputil.BadRequest(w, "expected /api/runs/<run_id> or /api/runs/<run_id>/map.png")
		return
	}

	switch {
	case sub == "map.png" && r.Method == http.MethodGet:
		s.handleRunSnapshot(w, id)
	case sub == "" && r.Method == http.MethodGet:
		run, err := s.runs.GetRun(id)
		if err != nil {
			writeStoreError(w, id, err)
			return
		}
		httputil.WriteJSONOK(w, run)
	case sub == "" && r.Method == http.MethodDelete:
		if err := s.runs.DeleteRun(id); err != nil {
			writeStoreError(w, id, err)
			return
		}
		httputil.WriteJSONOK(w, map[string]string{"status": "deleted", "run_id": id})
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleRunSnapshot(w http.ResponseWriter, id string) {
	if s.snapshots == nil {
		httputil.ServiceUnavailable(w, "snapshots not configured")
		return
	}
	snap, err := s.snapshots.LatestSnapshot(id)
	if err != nil {
		writeStoreError(w, id, err)
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, render.OccupancyImage(mapping.Resolve(snap.Map))); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to encode png: %v", err))
		return
	}
	httputil.WriteBody(w, "image/png", buf.Bytes())
}

func writeStoreError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		httputil.NotFound(w, fmt.Sprintf("run %s not found", id))
		return
	}
	httputil.InternalServerError(w, err.Error())
}
