package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"paperlens/internal/assistant"
	"paperlens/internal/ingest"
	"paperlens/internal/models"
	"paperlens/internal/providers"
	"paperlens/internal/util"
	"paperlens/internal/workflows"
)

type fakeCore struct {
	papers    map[string]models.Paper
	citations map[string][]models.Citation
	ingested  []ingest.Input
	explained []assistant.Request
	explain   error
	started   []workflows.PaperIngestInput
	status    map[string]workflows.IngestStatus
	pingErr   error
}

func (f *fakeCore) Status() []providers.ProviderStatus {
	return []providers.ProviderStatus{{Kind: "llm", Ref: "mock", Available: true}}
}

func (f *fakeCore) GetPaper(_ context.Context, id string) (models.Paper, error) {
	p, ok := f.papers[id]
	if !ok {
		return models.Paper{}, fmt.Errorf("get paper: %w", util.ErrNotFound)
	}
	return p, nil
}

func (f *fakeCore) ListByPaper(_ context.Context, paperID string) ([]models.Citation, error) {
	return f.citations[paperID], nil
}

func (f *fakeCore) Ingest(_ context.Context, in ingest.Input) (ingest.Result, error) {
	if strings.TrimSpace(in.Text) == "" {
		return ingest.Result{}, fmt.Errorf("text is required: %w", util.ErrValidation)
	}
	f.ingested = append(f.ingested, in)
	return ingest.Result{Paper: models.Paper{ID: "p-new", Title: in.Title}, Citations: 2}, nil
}

func (f *fakeCore) GetCitation(_ context.Context, paperID, key string) (models.Citation, error) {
	for _, c := range f.citations[paperID] {
		if c.CitationKey == key {
			c.EnrichmentFailed = true
			return c, nil
		}
	}
	return models.Citation{}, util.ErrNotFound
}

func (f *fakeCore) Explain(_ context.Context, req assistant.Request) (assistant.Response, error) {
	f.explained = append(f.explained, req)
	if f.explain != nil {
		return assistant.Response{}, f.explain
	}
	return assistant.Response{Reply: "explained", Citations: []models.Citation{}}, nil
}

func (f *fakeCore) StartIngest(_ context.Context, in workflows.PaperIngestInput) (string, error) {
	f.started = append(f.started, in)
	return "paper-ingest-1", nil
}

func (f *fakeCore) IngestStatus(_ context.Context, id string) (workflows.IngestStatus, error) {
	st, ok := f.status[id]
	if !ok {
		return workflows.IngestStatus{}, util.ErrNotFound
	}
	return st, nil
}

func (f *fakeCore) Ping(context.Context) error { return f.pingErr }

func newTestServer(t *testing.T) (*fakeCore, *httptest.Server) {
	t.Helper()
	return newTestServerWith(t, nil)
}

func newTestServerWith(t *testing.T, tune func(*Deps)) (*fakeCore, *httptest.Server) {
	t.Helper()
	core := &fakeCore{
		papers: map[string]models.Paper{"p1": {ID: "p1", Title: "Paper One", RawText: "secret body"}},
		citations: map[string][]models.Citation{"p1": {
			{ID: "c1", PaperID: "p1", CitationKey: "[1]", RawReference: models.StringPtr("Ref one.")},
			{ID: "c2", PaperID: "p1", CitationKey: "(Smith & Jones, 2020)"},
		}},
		status: map[string]workflows.IngestStatus{"paper-ingest-1": {Status: workflows.StatusProcessed, PaperID: "p9"}},
	}
	d := Deps{
		Papers:    core,
		Citations: core,
		Ingest:    core,
		Enrich:    core,
		Assistant: core,
		Runner:    core,
		DB:        core,
		Providers: core,
		UploadDir: t.TempDir(),
	}
	if tune != nil {
		tune(&d)
	}
	s := NewServer(d)
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return core, ts
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func errorCode(t *testing.T, resp *http.Response) string {
	body := decode(t, resp)
	return body["error"].(map[string]any)["code"].(string)
}

func TestHealthz(t *testing.T) {
	core, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	require.Equal(t, true, body["ok"])
	require.Len(t, body["providers"], 1)

	core.pingErr = errors.New("dial tcp: connection refused")
	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, "PL-API-5030", errorCode(t, resp))
}

func TestCreatePaper(t *testing.T) {
	core, ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/papers", "application/json", strings.NewReader(`{"title":"T","text":"Body [1]."}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode(t, resp)
	require.Equal(t, float64(2), body["citations"])
	require.Len(t, core.ingested, 1)

	resp, err = http.Post(ts.URL+"/papers", "application/json", strings.NewReader(`{"text":"  "}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "PL-API-4001", errorCode(t, resp))

	resp, err = http.Post(ts.URL+"/papers", "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/papers")
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	require.Equal(t, "PL-API-4005", errorCode(t, resp))
}

func TestGetPaper(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/papers/p1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	paper := body["paper"].(map[string]any)
	require.Equal(t, "Paper One", paper["title"])
	require.NotContains(t, paper, "raw_text")
	require.Len(t, body["citations"], 2)

	resp, err = http.Get(ts.URL + "/papers/missing")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "PL-API-4004", errorCode(t, resp))
}

func TestGetCitationEscapedKey(t *testing.T) {
	_, ts := newTestServer(t)
	key := url.PathEscape("(Smith & Jones, 2020)")
	resp, err := http.Get(ts.URL + "/papers/p1/citations/" + key)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	c := decode(t, resp)["citation"].(map[string]any)
	require.Equal(t, "(Smith & Jones, 2020)", c["citation_key"])
	require.Equal(t, true, c["enrichment_failed"])

	resp, err = http.Get(ts.URL + "/papers/p1/citations/" + url.PathEscape("[99]"))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestExplain(t *testing.T) {
	core, ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/explain", "application/json",
		strings.NewReader(`{"paper_id":"p1","selected_text":"the encoder","messages":[{"role":"user","content":"why?"}]}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "explained", decode(t, resp)["reply"])
	require.Equal(t, []models.Message{{Role: models.RoleUser, Content: "why?"}}, core.explained[0].History)

	core.explain = fmt.Errorf("explain passage: %w", util.ErrProviderUnavailable)
	resp, err = http.Post(ts.URL+"/explain", "application/json", strings.NewReader(`{"paper_id":"p1","selected_text":"x"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()

	core.explain = errors.New(`relation "papers" does not exist`)
	resp, err = http.Post(ts.URL+"/explain", "application/json", strings.NewReader(`{"paper_id":"p1","selected_text":"x"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "PL-DB-5001", errorCode(t, resp))
}

func TestUploadStartsWorkflow(t *testing.T) {
	core, ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "attention.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("title", "Attention"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/papers/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, "paper-ingest-1", decode(t, resp)["workflow_id"])

	require.Len(t, core.started, 1)
	in := core.started[0]
	require.Equal(t, "attention.pdf", in.Filename)
	require.Equal(t, "Attention", in.Title)
	require.Equal(t, ".pdf", filepath.Ext(in.PaperPath))
	data, err := os.ReadFile(in.PaperPath)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 fake", string(data))
}

func TestUploadRejectsNonPDF(t *testing.T) {
	_, ts := newTestServer(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("hello"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/papers/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode(t, resp)
	require.Equal(t, "No PDF file was provided.", body["error"].(map[string]any)["message"])
}

func TestIngestStatus(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/ingest/paper-ingest-1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "p9", decode(t, resp)["paper_id"])

	resp, err = http.Get(ts.URL + "/ingest/other")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/explain", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestPaperTextMarkers(t *testing.T) {
	core, ts := newTestServer(t)
	core.papers["p2"] = models.Paper{ID: "p2", RawText: "αβ cites [1] and (Smith & Jones, 2020)."}
	core.citations["p2"] = []models.Citation{
		{CitationKey: "[1]"},
		{CitationKey: "(Smith & Jones, 2020)"},
		{CitationKey: "[1]"},
		{CitationKey: "[7]"},
	}

	resp, err := http.Get(ts.URL + "/papers/p2/text")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	require.Equal(t, "αβ cites [1] and (Smith & Jones, 2020).", body["text"])

	markers := body["citation_markers"].([]any)
	require.Len(t, markers, 3)
	first := markers[0].(map[string]any)
	require.Equal(t, "[1]", first["key"])
	require.Equal(t, []any{map[string]any{"start": float64(9), "end": float64(12)}}, first["positions"])
	second := markers[1].(map[string]any)
	require.Equal(t, []any{map[string]any{"start": float64(17), "end": float64(38)}}, second["positions"])
	require.Empty(t, markers[2].(map[string]any)["positions"])

	resp, err = http.Get(ts.URL + "/papers/nope/text")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func pdfServer(t *testing.T, contentType string, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(delay):
			}
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte("%PDF-1.4 remote"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func postURL(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/papers/from-url", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestFromURLStartsWorkflow(t *testing.T) {
	core, ts := newTestServer(t)
	remote := pdfServer(t, "application/pdf", 0)

	resp := postURL(t, ts, `{"url":"`+remote.URL+`/files/attention","title":" Attention "}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	body := decode(t, resp)
	require.Equal(t, "paper-ingest-1", body["workflow_id"])
	require.Equal(t, "attention.pdf", body["filename"])

	require.Len(t, core.started, 1)
	in := core.started[0]
	require.Equal(t, "Attention", in.Title)
	data, err := os.ReadFile(in.PaperPath)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 remote", string(data))
}

func TestFromURLRejections(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postURL(t, ts, `{"url":"ftp://example.org/a.pdf"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Please provide a valid http(s) URL.", decode(t, resp)["error"].(map[string]any)["message"])

	html := pdfServer(t, "text/html; charset=utf-8", 0)
	resp = postURL(t, ts, `{"url":"`+html.URL+`/abs"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "The URL does not point to a PDF file.", decode(t, resp)["error"].(map[string]any)["message"])

	_, small := newTestServerWith(t, func(d *Deps) { d.MaxPDFBytes = 4 })
	remote := pdfServer(t, "application/octet-stream", 0)
	resp = postURL(t, small, `{"url":"`+remote.URL+`/a.pdf"}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	require.Equal(t, "PL-API-4013", errorCode(t, resp))
}

func TestFromURLTimeout(t *testing.T) {
	core, ts := newTestServerWith(t, func(d *Deps) { d.FetchTimeout = 50 * time.Millisecond })
	slow := pdfServer(t, "application/pdf", 2*time.Second)

	resp := postURL(t, ts, `{"url":"`+slow.URL+`/a.pdf"}`)
	require.Equal(t, http.StatusRequestTimeout, resp.StatusCode)
	require.Equal(t, "PL-API-4008", errorCode(t, resp))
	require.Empty(t, core.started)
}

func TestResolvePDFURL(t *testing.T) {
	got, err := resolvePDFURL(" https://arxiv.org/abs/1706.03762 ")
	require.NoError(t, err)
	require.Equal(t, "https://arxiv.org/pdf/1706.03762.pdf", got)

	got, err = resolvePDFURL("https://example.org/paper.pdf")
	require.NoError(t, err)
	require.Equal(t, "https://example.org/paper.pdf", got)

	_, err = resolvePDFURL("not a url")
	require.ErrorIs(t, err, util.ErrValidation)
}
