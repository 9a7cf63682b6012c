package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aktraiser/X-me/internal/api/chat"
	"github.com/aktraiser/X-me/internal/config"
	"github.com/aktraiser/X-me/internal/domain"
	"github.com/aktraiser/X-me/internal/llm"
	"github.com/aktraiser/X-me/internal/metrics"
	"github.com/aktraiser/X-me/internal/repository"
	"github.com/aktraiser/X-me/internal/sectors"
	"github.com/aktraiser/X-me/internal/service"
	"github.com/aktraiser/X-me/internal/uploads"
	"github.com/aktraiser/X-me/internal/vectorstore"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testAPIKey = "secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	dir := t.TempDir()

	db, err := repository.NewDB(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	client := llm.NewMockClient()
	store, err := uploads.NewStore(filepath.Join(dir, "uploads"), logger)
	require.NoError(t, err)
	catalog, err := sectors.LoadCatalog("")
	require.NoError(t, err)
	library := sectors.NewLibrary(sectors.LibraryConfig{
		DocumentationDir: filepath.Join(dir, "documentation"),
		ChunkSize:        1000,
		ChunkOverlap:     100,
		Dimension:        llm.MockDimension,
	}, catalog, vectorstore.NewMemory(), client, logger)

	chatRepo := repository.NewChatRepository(db)
	expertRepo := repository.NewExpertRepository(db)
	m := metrics.New()

	cfg := &config.Config{LLM: config.LLMConfig{Provider: "mock"}}
	orchestrator := service.NewOrchestrator(config.OrchestraConfig{
		SearchWeb:     true,
		SearchExperts: true,
		MaxDocs:       15,
		ExpertLimit:   3,
	}, service.Dependencies{
		LLM:     client,
		Sectors: library,
		Experts: expertRepo,
		Uploads: store,
		Metrics: m,
		Logger:  logger,
	})

	router := SetupRouter(Services{
		Chat:    service.NewChatService(chatRepo, orchestrator, logger),
		Uploads: service.NewUploadService(config.UploadsConfig{ChunkSize: 1000, ChunkOverlap: 100, MaxFileSize: 1 << 20}, store, client, logger),
		Catalog: service.NewCatalogService(cfg, catalog, client),
		Admin:   service.NewAdminService(chatRepo, expertRepo, store, library, logger),
	}, m, logger, RouterConfig{APIKey: testAPIKey, AllowOrigins: []string{"*"}})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any, header http.Header) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, srv.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `xme_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestChat(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/chat", domain.ChatRequest{Message: "Comment ouvrir une boulangerie ?", OptimizationMode: "speed"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out domain.ChatResponse
	decode(t, resp, &out)
	assert.NotEmpty(t, out.ChatID)
	assert.Contains(t, out.Answer, "[MOCK]")
	assert.NotNil(t, out.Sources)

	resp = get(t, srv.URL+"/api/chats/"+out.ChatID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detail domain.ChatDetail
	decode(t, resp, &detail)
	assert.Len(t, detail.Messages, 2)

	resp = get(t, srv.URL+"/api/chats", nil)
	var list struct {
		Chats []domain.Chat `json:"chats"`
	}
	decode(t, resp, &list)
	assert.Len(t, list.Chats, 1)

	resp = get(t, srv.URL+"/api/chats/unknown", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChat_BadRequest(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/chat", map[string]any{"history": []any{}}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/chat", domain.ChatRequest{Message: "x", FocusMode: "academic"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatStream(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/chat/stream", domain.ChatRequest{
		Message:          `{"type":"sector_research","sector":"Commerce alimentaire","subsector":null,"query":"Ouvrir une boulangerie"}`,
		OptimizationMode: "speed",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream"))
	assert.NotEmpty(t, resp.Header.Get(chat.HeaderChatID))
	assert.NotEmpty(t, resp.Header.Get(chat.HeaderMessageID))

	var events []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event:"); ok {
			events = append(events, strings.TrimSpace(name))
		}
	}
	require.NoError(t, scanner.Err())
	require.NotEmpty(t, events)
	assert.Equal(t, domain.EventSources, events[0])
	assert.Equal(t, domain.EventResponse, events[1])
	assert.Equal(t, domain.EventSuggestions, events[len(events)-2])
	assert.Equal(t, domain.EventEnd, events[len(events)-1])
}

func TestWebSocket(t *testing.T) {
	srv := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	readAnswer := func() []chat.Frame {
		var frames []chat.Frame
		for {
			var f chat.Frame
			require.NoError(t, conn.ReadJSON(&f))
			frames = append(frames, f)
			if f.Type == domain.EventEnd || f.Type == domain.EventError {
				return frames
			}
		}
	}

	require.NoError(t, conn.WriteJSON(domain.ChatRequest{Message: "Bonjour", OptimizationMode: "speed"}))
	frames := readAnswer()
	assert.Equal(t, domain.EventSources, frames[0].Type)
	assert.Equal(t, domain.EventEnd, frames[len(frames)-1].Type)
	chatID := frames[0].ChatID
	assert.NotEmpty(t, chatID)

	// rejected requests keep the connection open
	require.NoError(t, conn.WriteJSON(domain.ChatRequest{Message: " "}))
	frames = readAnswer()
	require.Len(t, frames, 1)
	assert.Equal(t, domain.EventError, frames[0].Type)

	require.NoError(t, conn.WriteJSON(domain.ChatRequest{ChatID: chatID, Message: "Et ensuite ?", OptimizationMode: "speed"}))
	frames = readAnswer()
	assert.Equal(t, chatID, frames[len(frames)-1].ChatID)
	assert.Equal(t, domain.EventEnd, frames[len(frames)-1].Type)
}

func TestCatalog(t *testing.T) {
	srv := newTestServer(t)

	var sectorsResp struct {
		Sectors []domain.Sector `json:"sectors"`
	}
	decode(t, get(t, srv.URL+"/api/sectors", nil), &sectorsResp)
	assert.Len(t, sectorsResp.Sectors, 15)

	var models service.ModelsResponse
	decode(t, get(t, srv.URL+"/api/models", nil), &models)
	assert.Equal(t, "mock-chat", models.ChatModel)
}

func multipartBody(t *testing.T, field, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploads(t *testing.T) {
	srv := newTestServer(t)

	body, contentType := multipartBody(t, "files", "notes.md", "# Plan\n\nLa trésorerie est saine.")
	resp, err := http.Post(srv.URL+"/api/uploads", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Files []domain.UploadedFile `json:"files"`
	}
	decode(t, resp, &out)
	require.Len(t, out.Files, 1)
	assert.Equal(t, "md", out.Files[0].FileExtension)

	var page domain.PageContent
	pageResp := get(t, srv.URL+"/api/uploads/"+out.Files[0].FileID+"/content?page=1", nil)
	require.Equal(t, http.StatusOK, pageResp.StatusCode)
	decode(t, pageResp, &page)
	assert.Equal(t, []string{"# Plan La trésorerie est saine."}, page.Chunks)

	assert.Equal(t, http.StatusNotFound, get(t, srv.URL+"/api/uploads/"+out.Files[0].FileID+"/content?page=2", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, get(t, srv.URL+"/api/uploads/"+out.Files[0].FileID+"/content?page=x", nil).StatusCode)

	// the upload can be used as context
	chatResp := postJSON(t, srv.URL+"/api/chat", domain.ChatRequest{
		Message:   "Que dit le plan ?",
		FocusMode: domain.FocusUploads,
		Files:     []string{out.Files[0].FileID},
	}, nil)
	require.Equal(t, http.StatusOK, chatResp.StatusCode)
	var answer domain.ChatResponse
	decode(t, chatResp, &answer)
	require.Len(t, answer.Sources, 1)
	assert.True(t, answer.Sources[0].Metadata.IsFile)

	body, contentType = multipartBody(t, "files", "run.sh", "echo")
	resp2, err := http.Post(srv.URL+"/api/uploads", contentType, body)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp2.StatusCode)
}

func TestAdmin(t *testing.T) {
	srv := newTestServer(t)
	auth := http.Header{"X-Api-Key": []string{testAPIKey}}

	resp := get(t, srv.URL+"/api/admin/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/admin/experts", domain.CreateExpertRequest{
		FirstName: "Marie",
		LastName:  "Durand",
		Specialty: "Boulangerie",
		City:      "Lyon",
	}, auth)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var expert domain.Expert
	decode(t, resp, &expert)

	resp = postJSON(t, srv.URL+"/api/admin/experts", map[string]string{"prenom": "x"}, auth)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	bearer := http.Header{"Authorization": []string{"Bearer " + testAPIKey}}
	resp = get(t, srv.URL+"/api/admin/experts/"+expert.ID, bearer)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var stats domain.Stats
	decode(t, get(t, srv.URL+"/api/admin/stats", auth), &stats)
	assert.Equal(t, 1, stats.TotalExperts)

	resp = postJSON(t, srv.URL+"/api/admin/sectors/ingest", domain.SectorIngestRequest{Sector: "Inconnu"}, auth)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/admin/sectors/ingest", domain.SectorIngestRequest{Sector: "Commerce alimentaire"}, auth)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
