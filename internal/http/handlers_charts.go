package http

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"superstore/internal/charts"
	applog "superstore/internal/log"
)

const maxChartSide = 2000

// handleChart serves /charts/{kind}.{png|svg}. Empty views answer 204 so
// the panel shows its placeholder instead of a broken image.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name, ext, found := strings.Cut(r.PathValue("file"), ".")
	if !found {
		NotFoundError("unknown chart").Write(w)
		return
	}
	kind, err := charts.ParseKind(name)
	if err != nil {
		NotFoundError("unknown chart").Write(w)
		return
	}
	format, err := charts.ParseFormat(ext)
	if err != nil {
		NotFoundError("unknown chart format").Write(w)
		return
	}

	v, ok := s.computeViews(w, r)
	if !ok {
		return
	}

	opts := charts.Options{
		Width:  sizeParam(r, "w"),
		Height: sizeParam(r, "h"),
	}
	var buf bytes.Buffer
	if err := charts.Render(&buf, kind, format, v, opts); err != nil {
		if errors.Is(err, charts.ErrNoData) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		applog.FromContext(ctx).ErrorContext(ctx, "Chart render failed",
			applog.NewFields().
				WithChart(string(kind), string(format)).
				WithView(v.Filters.String(), v.MatchedRows).
				WithError(err).
				WithOperation(applog.OpRender).
				ToSlice()...)
		http.Error(w, "chart render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "private, max-age=60")
	_, _ = w.Write(buf.Bytes())
}

func sizeParam(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n <= 0 {
		return 0
	}
	return min(n, maxChartSide)
}
