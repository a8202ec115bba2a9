package cli

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/molmatt/iopsy/pkg/data"
	"github.com/molmatt/iopsy/pkg/impact"
	"github.com/molmatt/iopsy/pkg/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func datasetsAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := data.ListDatasets(db)
		if err != nil {
			slog.Error("failed to list datasets", "error", err)
			writeError(w, http.StatusInternalServerError, "error listing datasets")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func groupsAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("d")
		if name == "" {
			writeError(w, http.StatusBadRequest, "dataset parameter (d) required")
			return
		}
		counts, err := data.GetGroupCounts(db, name)
		if err != nil {
			slog.Error("failed to get group counts", "dataset", name, "error", err)
			writeError(w, http.StatusInternalServerError, "error querying group counts")
			return
		}
		writeJSON(w, http.StatusOK, counts)
	}
}

func impactAPIHandler(db *sql.DB, cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("d")
		if name == "" {
			writeError(w, http.StatusBadRequest, "dataset parameter (d) required")
			return
		}

		d, err := data.GetDataset(db, name)
		if err != nil {
			slog.Error("failed to load dataset", "dataset", name, "error", err)
			writeError(w, http.StatusNotFound, "dataset not found")
			return
		}

		ic := impact.DefaultConfig()
		if cfg.Defaults != nil && cfg.Defaults.Alpha > 0 {
			ic.Alpha = cfg.Defaults.Alpha
		}
		if a := r.URL.Query().Get("alpha"); a != "" {
			if v, err := strconv.ParseFloat(a, 64); err == nil && v > 0 && v < 1 {
				ic.Alpha = v
			}
		}
		if ref := r.URL.Query().Get("referent"); ref != "" {
			ic.Referent = ref
		}

		var rule impact.Rule
		if cs := r.URL.Query().Get("cutscore"); cs != "" {
			v, err := strconv.ParseFloat(cs, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid cutscore")
				return
			}
			rule = impact.Cut(v)
		}

		report, err := impact.Report(d, rule, ic)
		if err != nil {
			slog.Error("failed to evaluate adverse impact", "dataset", name, "error", err)
			writeError(w, http.StatusInternalServerError, "error evaluating adverse impact")
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// fitRequest is the POST body for /api/fit. Config fields are pointers so
// absent fields are distinguishable from explicit zeros and fall back to
// defaults individually.
type fitRequest struct {
	Dataset string `json:"dataset"`
	Config  struct {
		FairnessLambda     *float64 `json:"fairness_lambda"`
		BaseL2             *float64 `json:"base_l2"`
		SelectionThreshold *float64 `json:"selection_threshold"`
		Family             string   `json:"family"`
		MaxIterations      *int     `json:"max_iterations"`
		Tolerance          *float64 `json:"tolerance"`
		Impact             *struct {
			Alpha      *float64 `json:"alpha"`
			Referent   string   `json:"referent"`
			MinRef     *int     `json:"min_ref"`
			TestMethod string   `json:"test_method"`
		} `json:"impact"`
	} `json:"config"`
}

func (req *fitRequest) fitConfig() model.Config {
	mc := model.DefaultConfig()
	c := req.Config
	if c.FairnessLambda != nil {
		mc.FairnessLambda = *c.FairnessLambda
	}
	if c.BaseL2 != nil {
		mc.BaseL2 = *c.BaseL2
	}
	if c.SelectionThreshold != nil {
		mc.SelectionThreshold = *c.SelectionThreshold
	}
	if c.Family != "" {
		mc.Family = c.Family
	}
	if c.MaxIterations != nil {
		mc.MaxIterations = *c.MaxIterations
	}
	if c.Tolerance != nil {
		mc.Tolerance = *c.Tolerance
	}
	if c.Impact != nil {
		if c.Impact.Alpha != nil {
			mc.Impact.Alpha = *c.Impact.Alpha
		}
		if c.Impact.Referent != "" {
			mc.Impact.Referent = c.Impact.Referent
		}
		if c.Impact.MinRef != nil {
			mc.Impact.MinRef = *c.Impact.MinRef
		}
		if c.Impact.TestMethod != "" {
			mc.Impact.TestMethod = c.Impact.TestMethod
		}
	}
	return mc
}

func fitAPIHandler(db *sql.DB, cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "POST required")
			return
		}

		var req fitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Error("error binding json", "error", err)
			writeError(w, http.StatusBadRequest, "error binding json")
			return
		}
		if req.Dataset == "" {
			writeError(w, http.StatusBadRequest, "dataset required")
			return
		}

		d, err := data.GetDataset(db, req.Dataset)
		if err != nil {
			slog.Error("failed to load dataset", "dataset", req.Dataset, "error", err)
			writeError(w, http.StatusNotFound, "dataset not found")
			return
		}

		m, err := model.Fit(d, req.fitConfig())
		if err != nil {
			var nc *model.NonConvergenceError
			if errors.As(err, &nc) {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
					"error":         "fit did not converge",
					"iterations":    nc.Iterations,
					"gradient_norm": nc.GradientNorm,
				})
				return
			}
			slog.Error("failed to fit model", "dataset", req.Dataset, "error", err)
			writeError(w, http.StatusInternalServerError, "error fitting model")
			return
		}

		writeJSON(w, http.StatusOK, m)
	}
}
