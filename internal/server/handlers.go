package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/racksizer/pkg/buildinfo"
	"github.com/matzehuels/racksizer/pkg/compare"
	"github.com/matzehuels/racksizer/pkg/pipeline"
	"github.com/matzehuels/racksizer/pkg/rack"
	"github.com/matzehuels/racksizer/pkg/session"
	"github.com/matzehuels/racksizer/pkg/solver"
)

// =============================================================================
// Response Types
// =============================================================================

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Catalog string `json:"catalog"`
	Configs int    `json:"configs"`
}

type configsResponse struct {
	Source         string               `json:"source"`
	Configurations []rack.Configuration `json:"configurations"`
}

type solveResponse struct {
	RunID     string         `json:"run_id"`
	ExpiresAt time.Time      `json:"expires_at"`
	Cached    bool           `json:"cached"`
	Result    *solver.Result `json:"result"`
}

type compareResponse struct {
	Cached bool            `json:"cached"`
	Result *compare.Result `json:"result"`
}

type exportResponse struct {
	Cached bool `json:"cached"`
	*pipeline.ExportResult
}

// =============================================================================
// Catalog
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cat := s.catalog.Catalog()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: buildinfo.Version,
		Catalog: cat.Source(),
		Configs: cat.Len(),
	})
}

func (s *Server) handleConfigs(w http.ResponseWriter, r *http.Request) {
	cat := s.catalog.Catalog()
	writeJSON(w, http.StatusOK, configsResponse{
		Source:         cat.Source(),
		Configurations: cat.All(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.catalog.Catalog().Get(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// =============================================================================
// Solve & Compare
// =============================================================================

// handleSolve solves one configuration and stores the result as a run.
// The run keeps the configuration record it was solved with.
func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.Options
	if err := decodeJSON(w, r, &opts); err != nil {
		writeError(w, s.logger, err)
		return
	}
	cat := s.catalog.Catalog()
	opts.Catalog = cat
	opts.SetSolveDefaults()

	res, cached, err := s.runner.SolveWithCacheInfo(r.Context(), opts)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	cfg, err := cat.Get(opts.ConfigKey)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	run := session.New(cfg, opts.Request(cfg), res, s.runTTL)
	if err := s.runs.Set(r.Context(), run); err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.logger.Info("solved", "config", cfg.Key, "run", run.ID, "outcome", res.Outcome, "cached", cached)

	writeJSON(w, http.StatusOK, solveResponse{
		RunID:     run.ID,
		ExpiresAt: run.ExpiresAt,
		Cached:    cached,
		Result:    res,
	})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.Options
	if err := decodeJSON(w, r, &opts); err != nil {
		writeError(w, s.logger, err)
		return
	}
	opts.Catalog = s.catalog.Catalog()

	res, cached, err := s.runner.CompareWithCacheInfo(r.Context(), opts)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, compareResponse{Cached: cached, Result: res})
}

// =============================================================================
// Export
// =============================================================================

// handleExport exports an explicit footprint. With ?format=text the CAD
// lines are returned as plain text.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.Options
	if err := decodeJSON(w, r, &opts); err != nil {
		writeError(w, s.logger, err)
		return
	}
	opts.Catalog = s.catalog.Catalog()

	res, cached, err := s.runner.ExportWithCacheInfo(r.Context(), opts)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if wantsText(r) {
		writeText(w, http.StatusOK, res.Text)
		return
	}
	writeJSON(w, http.StatusOK, exportResponse{Cached: cached, ExportResult: res})
}

// =============================================================================
// Runs
// =============================================================================

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleRunExport returns the CAD lines of a stored run as plain text, or
// the full export with ?format=json.
func (s *Server) handleRunExport(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	res, err := pipeline.ExportSolved(run.Config, run.Result)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, exportResponse{ExportResult: res})
		return
	}
	writeText(w, http.StatusOK, res.Text)
}

func wantsText(r *http.Request) bool {
	return r.URL.Query().Get("format") == "text"
}
