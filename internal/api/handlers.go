package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cyberrisk/internal/model"
	"github.com/sells-group/cyberrisk/internal/query"
)

const welcome = "cyberrisk: simulated cyber-attack cost results. " +
	"GET /results/{company_id}, GET or POST /results/segment.\n"

type companyResult struct {
	CompanyID             string                   `json:"company_id"`
	AverageSimulationCost float64                  `json:"average_simulation_cost"`
	NumSimulations        int                      `json:"num_simulations"`
	Metrics               *model.SimulationMetrics `json:"metrics,omitempty"`
}

func (s *Server) handleWelcome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(welcome))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	idx := s.holder.Load()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"companies": idx.Len(),
		"built_at":  idx.BuiltAt(),
	})
}

func (s *Server) handleCompany(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "company_id")
	agg, err := s.query.ResultsByID(id)
	if err != nil {
		if model.IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: model.KindNotFound, CompanyID: id})
			return
		}
		writeError(w, r, err)
		return
	}

	res := companyResult{
		CompanyID:             agg.CompanyID,
		AverageSimulationCost: agg.AverageSimulationCost,
		NumSimulations:        agg.NumSimulations,
	}
	if detail, _ := strconv.ParseBool(r.URL.Query().Get("detail")); detail {
		m := agg.Metrics
		res.Metrics = &m
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSegmentGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var seg query.Segment
	for _, v := range splitValues(q["revenue"]) {
		seg.Revenues = append(seg.Revenues, query.ParseRevenueSelector(v))
	}
	seg.Industries = splitValues(q["industry"])
	s.writeSegment(w, r, seg)
}

func (s *Server) handleSegmentPost(w http.ResponseWriter, r *http.Request) {
	seg, err := decodeSegment(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:  model.KindValidation,
			Detail: "invalid request body: " + err.Error(),
		})
		return
	}
	s.writeSegment(w, r, seg)
}

// decodeSegment reads exactly one JSON object. A null body or anything
// after the object is rejected.
func decodeSegment(body io.Reader) (query.Segment, error) {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	var seg *query.Segment
	if err := dec.Decode(&seg); err != nil {
		return query.Segment{}, err
	}
	if seg == nil {
		return query.Segment{}, eris.New("expected a JSON object, got null")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return query.Segment{}, eris.New("unexpected data after JSON object")
	}
	return *seg, nil
}

func (s *Server) writeSegment(w http.ResponseWriter, r *http.Request, seg query.Segment) {
	res, err := s.query.ResultsBySegment(seg)
	if err != nil {
		if model.IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, emptySegment{})
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.loader == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "reload_unavailable"})
		return
	}
	if err := s.Reload(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "reloaded",
		"companies": s.holder.Load().Len(),
	})
}

// Reload rebuilds the index and records the outcome. It is shared by the
// reload endpoint and the periodic refresh in serve.
func (s *Server) Reload(ctx context.Context) error {
	if s.loader == nil {
		return eris.New("api: no index loader configured")
	}
	if err := s.holder.Reload(ctx, s.loader); err != nil {
		s.metrics.IndexReloads.WithLabelValues("error").Inc()
		return eris.Wrap(err, "api: reload index")
	}
	s.metrics.IndexReloads.WithLabelValues("ok").Inc()
	s.metrics.IndexCompanies.Set(float64(s.holder.Load().Len()))
	zap.L().Info("index reloaded", zap.Int("companies", s.holder.Load().Len()))
	return nil
}

// splitValues flattens repeated and comma-separated query values.
func splitValues(raw []string) []string {
	var out []string
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
