package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fortidsminder/pkg/chat"
	"fortidsminder/pkg/logger"
	"fortidsminder/pkg/retry"
	"fortidsminder/pkg/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockChatService simulates the hosted chat service with per-label
// failures and a transient outage
type mockChatService struct {
	server       *httptest.Server
	requestCount int32
	outages      int32
	mu           sync.RWMutex
	// errorResponses maps a category label to the status code it fails with
	errorResponses map[string]int
}

func newMockChatService(t *testing.T) *mockChatService {
	m := &mockChatService{errorResponses: make(map[string]int)}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "hf-chat", Value: "session", Path: "/"})
	})
	mux.HandleFunc("/api/models", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("hf-chat"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `[{"id":"mock-model"}]`)
	})
	mux.HandleFunc("/conversation", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"conversationId":"c1"}`)
	})
	mux.HandleFunc("/conversation/c1", m.handlePrompt)

	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockChatService) handlePrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodDelete {
		return
	}
	atomic.AddInt32(&m.requestCount, 1)

	if atomic.LoadInt32(&m.outages) > 0 {
		atomic.AddInt32(&m.outages, -1)
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	var req struct {
		Inputs    string `json:"inputs"`
		WebSearch bool   `json:"web_search"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	label := req.Inputs[strings.LastIndex(req.Inputs, "TYPE: ")+len("TYPE: "):]

	m.mu.RLock()
	code := m.errorResponses[label]
	m.mu.RUnlock()
	if code != 0 {
		w.WriteHeader(code)
		return
	}

	if req.WebSearch {
		fmt.Fprintf(w, `{"type":"webSearch","messageType":"sources","sources":[{"link":"https://natmus.dk/%s"}]}`+"\n", label)
	}
	fmt.Fprintf(w, `{"type":"stream","token":"%s er et fortidsminde."}`+"\n", label)
}

func (m *mockChatService) failLabel(label string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorResponses[label] = code
}

func (m *mockChatService) recover() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorResponses = make(map[string]int)
}

func newPipelineGenerator(t *testing.T, m *mockChatService) *ChatGenerator {
	t.Helper()
	client, err := chat.NewClient(chat.Options{BaseURL: m.server.URL, CookieDir: t.TempDir(), Timeout: 5 * time.Second}, logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, client.Login(context.Background(), "a@b.dk", "secret"))
	t.Cleanup(func() { _ = client.Close() })

	retryCfg := &retry.Config{MaxAttempts: 2, Backoff: &retry.ConstantBackoff{}, RetryIf: retry.DefaultRetryIf}
	return NewChatGenerator(client, nil, retryCfg, true, logger.NewNopLogger())
}

func TestPipelineEnrichExportResume(t *testing.T) {
	m := newMockChatService(t)
	m.failLabel("Dysse", http.StatusForbidden)
	atomic.StoreInt32(&m.outages, 1)

	input := table.New([]string{"anlaegsbetydning", "counts"})
	input.Rows = [][]string{{"Rundhøj", "12"}, {"Dysse", "9"}, {"Kirke", "5"}, {"Borg", "3"}, {"Voldsted", "1"}}

	outDir := t.TempDir()
	checkpoints := newCheckpoints(t)

	runner, err := NewRunner(newPipelineGenerator(t, m), checkpoints, Options{
		LabelColumn: "anlaegsbetydning", ChunkSize: 2, Chunked: true, Cleanup: true,
	}, logger.NewNopLogger())
	require.NoError(t, err)

	report, err := runner.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Succeeded, "the 502 outage is retried")
	assert.Equal(t, 1, report.Failed)

	path, err := table.Export(input, outDir, "enriched")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "enriched.csv"), path)

	// second run on the exported table after the service recovered
	m.recover()
	before := atomic.LoadInt32(&m.requestCount)

	reloaded, err := table.Load(path, table.LoadOptions{Encoding: "utf-8"})
	require.NoError(t, err)
	def, _ := reloaded.Get(1, DefinitionColumn)
	require.True(t, IsFailureMarker(def), "got %q", def)

	runner, err = NewRunner(newPipelineGenerator(t, m), checkpoints, Options{
		LabelColumn: "anlaegsbetydning", ChunkSize: 2, Chunked: true, Resume: true, Cleanup: true,
	}, logger.NewNopLogger())
	require.NoError(t, err)

	report, err = runner.Run(context.Background(), reloaded)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&m.requestCount)-before, "only the failed row is asked again")
	assert.Equal(t, 4, report.Skipped)

	assert.Equal(t, []string{"anlaegsbetydning", "definition", "sources", "counts"}, reloaded.Header)
	for _, row := range reloaded.Rows {
		assert.Equal(t, row[0]+" er et fortidsminde.", row[1])
		assert.Equal(t, `["https://natmus.dk/`+row[0]+`"]`, row[2])
	}
	assert.Equal(t, "9", reloaded.Rows[1][3])
}
