package server

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ragbench/rag-bench/internal/config"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}

	s, err := New(cfg, "test", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(s.buildHandler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestHealthAndVersion(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	resp2, err := http.Get(ts.URL + "/v1/version")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()

	var version map[string]string
	decodeBody(t, resp2, &version)
	if version["version"] != "test" {
		t.Errorf("version = %v", version)
	}
}

func TestHandleFuse(t *testing.T) {
	ts := newTestServer(t)

	req := map[string]any{
		"result_sets": [][]map[string]any{
			{{"document_id": "A", "score": 0.9}, {"document_id": "B", "score": 0.8}},
			{{"document_id": "B", "score": 0.7}, {"document_id": "A", "score": 0.6}},
		},
		"top_k": 10,
	}

	resp := postJSON(t, ts.URL+"/v1/fuse", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Results []struct {
			DocumentID string  `json:"document_id"`
			Score      float64 `json:"score"`
		} `json:"results"`
	}
	decodeBody(t, resp, &body)

	if len(body.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(body.Results))
	}
	// Tied scores resolve by first-discovery order: A before B.
	if body.Results[0].DocumentID != "A" || body.Results[1].DocumentID != "B" {
		t.Errorf("order = %s, %s; want A, B", body.Results[0].DocumentID, body.Results[1].DocumentID)
	}
	want := 1.0/61 + 1.0/62
	if math.Abs(body.Results[0].Score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", body.Results[0].Score, want)
	}
}

func TestHandleFuse_InvalidTopK(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/fuse", map[string]any{"result_sets": [][]map[string]any{}, "top_k": 0})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleChunk(t *testing.T) {
	ts := newTestServer(t)

	req := map[string]any{
		"text":           "one two three four five six seven eight nine ten eleven twelve",
		"document_id":    "doc-1",
		"chunk_tokens":   13,
		"overlap_tokens": 2,
		"word_ratio":     1.3,
	}

	resp := postJSON(t, ts.URL+"/v1/chunk", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Chunks []struct {
			ID         string `json:"id"`
			DocumentID string `json:"document_id"`
			Text       string `json:"text"`
			StartIndex int    `json:"start_index"`
			EndIndex   int    `json:"end_index"`
		} `json:"chunks"`
	}
	decodeBody(t, resp, &body)

	// 12 words with a 10-word window and step 9 gives two chunks.
	if len(body.Chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(body.Chunks))
	}
	if body.Chunks[0].StartIndex != 0 {
		t.Errorf("first chunk start = %d", body.Chunks[0].StartIndex)
	}
	if body.Chunks[0].DocumentID != "doc-1" {
		t.Errorf("document_id = %s", body.Chunks[0].DocumentID)
	}
}

func TestHandleChunk_MissingDocumentID(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/chunk", map[string]any{"text": "some text"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleMetrics(t *testing.T) {
	ts := newTestServer(t)

	req := map[string]any{
		"query":                 "capital of france",
		"response":              "Paris",
		"ground_truth":          "paris",
		"relevant_document_ids": []string{"d1"},
		"retrieved": []map[string]any{
			{"document_id": "d1", "score": 0.9},
			{"document_id": "d2", "score": 0.8},
		},
		"metrics": []string{"precision@1", "exact_match"},
	}

	resp := postJSON(t, ts.URL+"/v1/metrics", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Results []struct {
			Name    string  `json:"name"`
			Value   float64 `json:"value"`
			Success bool    `json:"success"`
		} `json:"results"`
	}
	decodeBody(t, resp, &body)

	if len(body.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(body.Results))
	}
	for _, result := range body.Results {
		if result.Value != 1.0 || !result.Success {
			t.Errorf("%s = %v (success=%v), want 1.0", result.Name, result.Value, result.Success)
		}
	}
}

func TestHandleMetrics_UnknownMetric(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/metrics", map[string]any{
		"query":   "q",
		"metrics": []string{"no-such-metric"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleCompare(t *testing.T) {
	ts := newTestServer(t)

	req := map[string]any{
		"variant_a": "baseline",
		"variant_b": "hybrid",
		"metric":    "mrr",
		"samples_a": []float64{0.5, 0.6, 0.5, 0.7},
		"samples_b": []float64{0.5, 0.6, 0.5, 0.7},
	}

	resp := postJSON(t, ts.URL+"/v1/compare", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		PValue        float64 `json:"p_value"`
		IsSignificant bool    `json:"is_significant"`
		Indicator     string  `json:"indicator"`
	}
	decodeBody(t, resp, &body)

	// Identical samples: no difference, p = 1.
	if body.PValue != 1.0 || body.IsSignificant {
		t.Errorf("p = %v significant = %v, want 1.0/false", body.PValue, body.IsSignificant)
	}
	if body.Indicator != "" {
		t.Errorf("indicator = %q, want empty", body.Indicator)
	}
}

func TestHandleCompare_LengthMismatch(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/compare", map[string]any{
		"variant_a": "a",
		"variant_b": "b",
		"metric":    "mrr",
		"samples_a": []float64{0.5, 0.6},
		"samples_b": []float64{0.5},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleEvaluate(t *testing.T) {
	ts := newTestServer(t)

	req := map[string]any{
		"variant": "precomputed",
		"dataset": map[string]any{
			"name": "mini",
			"samples": []map[string]any{
				{"id": "s1", "query": "q1", "expected_answer": "paris", "relevant_document_ids": []string{"d1"}},
				{"id": "s2", "query": "q2", "expected_answer": "london", "relevant_document_ids": []string{"d2"}},
			},
		},
		"results": map[string]any{
			"s1": []map[string]any{{"document_id": "d1", "score": 0.9}},
			"s2": []map[string]any{{"document_id": "d7", "score": 0.9}},
		},
		"responses": map[string]string{"s1": "paris", "s2": "berlin"},
	}

	resp := postJSON(t, ts.URL+"/v1/evaluate", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		RunID     string `json:"run_id"`
		Aggregate struct {
			Recall     float64 `json:"recall"`
			MRR        float64 `json:"mrr"`
			QueryCount int     `json:"query_count"`
		} `json:"aggregate"`
		Metrics map[string]float64 `json:"metrics"`
	}
	decodeBody(t, resp, &body)

	if body.RunID == "" {
		t.Error("missing run_id")
	}
	if body.Aggregate.QueryCount != 2 {
		t.Errorf("query_count = %d, want 2", body.Aggregate.QueryCount)
	}
	if math.Abs(body.Aggregate.Recall-0.5) > 1e-9 {
		t.Errorf("recall = %v, want 0.5", body.Aggregate.Recall)
	}
	if math.Abs(body.Metrics["exact_match"]-0.5) > 1e-9 {
		t.Errorf("exact_match = %v, want 0.5", body.Metrics["exact_match"])
	}
}

func TestHandleEvaluate_MissingVariant(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/evaluate", map[string]any{
		"dataset": map[string]any{"name": "x", "samples": []map[string]any{{"id": "s1", "query": "q"}}},
		"results": map[string]any{},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleListRuns_NoStore(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/runs")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestMalformedJSON(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/fuse", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
