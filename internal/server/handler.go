package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ragbench/rag-bench/internal/chunk"
	"github.com/ragbench/rag-bench/internal/config"
	"github.com/ragbench/rag-bench/internal/dataset"
	"github.com/ragbench/rag-bench/internal/evaluation"
	"github.com/ragbench/rag-bench/internal/pkg/errors"
	"github.com/ragbench/rag-bench/internal/retrieval"
	"github.com/ragbench/rag-bench/internal/retrieval/fusion"
	"github.com/ragbench/rag-bench/internal/runner"
	"github.com/ragbench/rag-bench/internal/stats"
	"github.com/ragbench/rag-bench/internal/store"
)

// Handler serves the evaluation API.
type Handler struct {
	runner   *runner.Runner
	registry *evaluation.Registry
	fuser    *fusion.Fuser
	store    *store.RunStore
	cfg      *config.Config
	version  string
}

// NewHandler creates the API handler.
func NewHandler(run *runner.Runner, registry *evaluation.Registry, fuser *fusion.Fuser, runStore *store.RunStore, cfg *config.Config, version string) *Handler {
	return &Handler{
		runner:   run,
		registry: registry,
		fuser:    fuser,
		store:    runStore,
		cfg:      cfg,
		version:  version,
	}
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/evaluate", h.handleEvaluate)
	mux.HandleFunc("POST /v1/compare", h.handleCompare)
	mux.HandleFunc("POST /v1/fuse", h.handleFuse)
	mux.HandleFunc("POST /v1/chunk", h.handleChunk)
	mux.HandleFunc("POST /v1/metrics", h.handleMetrics)
	mux.HandleFunc("GET /v1/metrics", h.handleListMetrics)
	mux.HandleFunc("GET /v1/runs", h.handleListRuns)
	mux.HandleFunc("GET /v1/runs/{id}", h.handleGetRun)
	mux.HandleFunc("GET /v1/version", h.handleVersion)
	mux.HandleFunc("GET /health", h.handleHealth)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Encoding errors cannot be reported once headers are written
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.InvalidRequestError("malformed JSON body: " + err.Error())
	}
	return nil
}

// evaluateRequest carries an inline dataset plus precomputed retrieval
// results and responses keyed by sample ID.
type evaluateRequest struct {
	Variant   string                              `json:"variant"`
	Dataset   dataset.Dataset                     `json:"dataset"`
	Results   map[string][]retrieval.RankedResult `json:"results"`
	Responses map[string]string                   `json:"responses,omitempty"`
	Strategy  evaluation.Strategy                 `json:"strategy,omitempty"`
	Save      bool                                `json:"save,omitempty"`
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteError(w, err)
		return
	}
	if req.Variant == "" {
		errors.WriteError(w, errors.ValidationError("variant is required"))
		return
	}

	variant := runner.Variant{
		Name:       req.Variant,
		Retrievers: []retrieval.Retriever{runner.NewStaticRetriever(&req.Dataset, req.Results)},
	}
	if len(req.Responses) > 0 {
		variant.Responder = runner.NewStaticResponder(&req.Dataset, req.Responses)
	}

	run := h.runner
	if req.Strategy != "" && req.Strategy != evaluation.StrategyMacro {
		if req.Strategy != evaluation.StrategyMicro {
			errors.WriteError(w, errors.ValidationErrorf("unknown strategy: %s", req.Strategy))
			return
		}
		var err error
		run, err = runner.New(runner.Config{
			TopK:     h.cfg.Eval.TopK,
			Workers:  h.cfg.Eval.Workers,
			Strategy: req.Strategy,
		}, h.registry, h.fuser, nil, nil)
		if err != nil {
			errors.WriteError(w, err)
			return
		}
	}

	report, err := run.Run(r.Context(), &req.Dataset, variant)
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	if req.Save {
		if h.store == nil {
			errors.WriteError(w, errors.New(errors.CodeUnavailable, "run history store not configured"))
			return
		}
		if err := h.store.SaveReport(r.Context(), report); err != nil {
			errors.WriteError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, report)
}

type compareRequest struct {
	VariantA string    `json:"variant_a"`
	VariantB string    `json:"variant_b"`
	Metric   string    `json:"metric"`
	SamplesA []float64 `json:"samples_a"`
	SamplesB []float64 `json:"samples_b"`
}

type compareResponse struct {
	*stats.ComparisonResult
	ImprovementPercentage float64 `json:"improvement_percentage"`
	Indicator             string  `json:"indicator"`
}

func (h *Handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteError(w, err)
		return
	}

	result, err := stats.Compare(req.VariantA, req.VariantB, req.Metric, req.SamplesA, req.SamplesB)
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	meanA := mean(req.SamplesA)
	meanB := mean(req.SamplesB)

	writeJSON(w, http.StatusOK, compareResponse{
		ComparisonResult:      result,
		ImprovementPercentage: stats.ImprovementPercentage(meanA, meanB),
		Indicator:             stats.SignificanceIndicator(result.PValue),
	})
}

type fuseRequest struct {
	ResultSets [][]retrieval.RankedResult `json:"result_sets"`
	TopK       int                        `json:"top_k"`
	K          int                        `json:"k,omitempty"`
}

func (h *Handler) handleFuse(w http.ResponseWriter, r *http.Request) {
	var req fuseRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteError(w, err)
		return
	}

	fuser := h.fuser
	if req.K != 0 {
		var err error
		fuser, err = fusion.NewFuser(req.K)
		if err != nil {
			errors.WriteError(w, err)
			return
		}
	}

	fused, err := fuser.Fuse(req.ResultSets, req.TopK)
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": fused})
}

type chunkRequest struct {
	Text          string  `json:"text"`
	DocumentID    string  `json:"document_id"`
	ChunkTokens   int     `json:"chunk_tokens,omitempty"`
	OverlapTokens int     `json:"overlap_tokens,omitempty"`
	WordRatio     float64 `json:"word_ratio,omitempty"`
}

func (h *Handler) handleChunk(w http.ResponseWriter, r *http.Request) {
	var req chunkRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteError(w, err)
		return
	}

	cfg := chunk.ChunkerConfig{
		ChunkTokens:   h.cfg.Eval.ChunkTokens,
		OverlapTokens: h.cfg.Eval.OverlapTokens,
		WordRatio:     h.cfg.Eval.WordRatio,
	}
	if req.ChunkTokens != 0 {
		cfg.ChunkTokens = req.ChunkTokens
	}
	if req.OverlapTokens != 0 {
		cfg.OverlapTokens = req.OverlapTokens
	}
	if req.WordRatio != 0 {
		cfg.WordRatio = req.WordRatio
	}

	chunker, err := chunk.NewChunker(cfg)
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	chunks, err := chunker.Chunk(req.Text, req.DocumentID)
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"chunks": chunks})
}

type metricsRequest struct {
	SampleID            string                   `json:"sample_id,omitempty"`
	Query               string                   `json:"query"`
	Response            string                   `json:"response,omitempty"`
	GroundTruth         string                   `json:"ground_truth,omitempty"`
	RelevantDocumentIDs []string                 `json:"relevant_document_ids,omitempty"`
	Retrieved           []retrieval.RankedResult `json:"retrieved,omitempty"`
	Metrics             []string                 `json:"metrics,omitempty"`
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var req metricsRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteError(w, err)
		return
	}

	relevant := make(map[string]bool, len(req.RelevantDocumentIDs))
	for _, id := range req.RelevantDocumentIDs {
		relevant[id] = true
	}

	evalCtx := &evaluation.EvaluationContext{
		SampleID:            req.SampleID,
		Query:               req.Query,
		Response:            req.Response,
		GroundTruth:         req.GroundTruth,
		RelevantDocumentIDs: relevant,
		RetrievedDocuments:  req.Retrieved,
	}

	var results []evaluation.MetricResult
	if len(req.Metrics) == 0 {
		results = h.registry.CalculateAll(evalCtx)
	} else {
		for _, name := range req.Metrics {
			result, err := h.registry.Calculate(name, evalCtx)
			if err != nil {
				errors.WriteError(w, errors.ValidationErrorf("unknown metric: %s", name))
				return
			}
			results = append(results, result)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handler) handleListMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"metrics": h.registry.Names()})
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		errors.WriteError(w, errors.New(errors.CodeUnavailable, "run history store not configured"))
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			errors.WriteError(w, errors.ValidationErrorf("invalid limit: %s", v))
			return
		}
		limit = parsed
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		errors.WriteError(w, errors.New(errors.CodeUnavailable, "run history store not configured"))
		return
	}

	runID := r.PathValue("id")
	if runID == "" {
		errors.WriteError(w, errors.ValidationError("run ID is required"))
		return
	}

	report, err := h.store.GetReport(r.Context(), runID)
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": h.version})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
