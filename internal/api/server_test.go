package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusforge/docrefine/internal/clean"
	"github.com/corpusforge/docrefine/internal/llm"
	"github.com/corpusforge/docrefine/internal/observability"
	"github.com/corpusforge/docrefine/internal/prune"
	"github.com/corpusforge/docrefine/internal/refine"
	"github.com/corpusforge/docrefine/internal/segment"
)

type cannedGenerator struct {
	boundary string
	score    string
}

func (g *cannedGenerator) Complete(_ context.Context, req llm.Request) (string, error) {
	if strings.Contains(req.Prompt, "<document_paragraphs>") {
		return g.boundary, nil
	}
	return g.score, nil
}

type charCounter struct{}

func (charCounter) Count(text string) int { return len(text) / 4 }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := observability.Nop()
	gen := &cannedGenerator{
		boundary: `{"start_heading": "1 Introduction", "end_heading": "References"}`,
		score:    `{"score": 9, "reason": "Clean."}`,
	}
	svc := NewService(
		clean.New(),
		segment.New(segment.NewLocalSplitter(), logger),
		prune.New(gen, charCounter{}, prune.Config{}, logger),
		refine.New(gen, refine.Config{}, logger),
		logger,
	)
	srv := httptest.NewServer(NewRouter(svc, logger, 0))
	t.Cleanup(srv.Close)
	return srv
}

func testDocument() string {
	var b strings.Builder
	b.WriteString("Preamble before the body.\n\n1 Introduction\n\n")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "Body paragraph number %d moves the story along.\n\n", i)
	}
	b.WriteString("References\n\n[1] A cited work. (2023).\n")
	return b.String()
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRefineEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/refine", RefineRequestDTO{
		Name: "paper",
		Text: testDocument(),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out RefineResponseDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "paper", out.Name)
	assert.Equal(t, "en", out.Language)
	assert.True(t, out.Trimmed)
	assert.Contains(t, out.Text, "Body paragraph number 0")
	assert.NotContains(t, out.Text, "Preamble")
	assert.NotContains(t, out.Text, "cited work")
	assert.Greater(t, out.Stats.Chunks, 0)
	assert.Nil(t, out.Stages)
}

func TestRefineEndpoint_IncludeStages(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/refine", RefineRequestDTO{
		Text:          testDocument(),
		IncludeStages: true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out RefineResponseDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "document", out.Name)
	require.Contains(t, out.Stages, ArtifactCleaned)
	require.Contains(t, out.Stages, ArtifactPruned)
	assert.Contains(t, out.Stages[ArtifactCleaned], "Preamble")
	assert.NotContains(t, out.Stages[ArtifactPruned], "Preamble")
}

func TestRefineEndpoint_EmptyText(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/refine", RefineRequestDTO{Name: "empty"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRefineEndpoint_MalformedBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/refine", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRefineEndpoint_ShortDocumentPassesThrough(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/refine", RefineRequestDTO{
		Name: "short",
		Text: "Just one paragraph of text.\n\nAnd another one.\n",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out RefineResponseDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Trimmed)
	assert.Contains(t, out.Text, "Just one paragraph of text.")
}
