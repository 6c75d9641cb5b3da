package routers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yusiwen/rtsp4k/metrics"
	"github.com/yusiwen/rtsp4k/models"
	"github.com/yusiwen/rtsp4k/relay"
)

type addCall struct {
	route, input string
}

type fakeRegistry struct {
	mu        sync.Mutex
	sessions  map[string]models.StreamSession
	adds      []addCall
	removes   []string
	addErr    error
	removeErr error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{sessions: make(map[string]models.StreamSession)}
}

func (f *fakeRegistry) Add(ctx context.Context, route, input string) (models.StreamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds = append(f.adds, addCall{route, input})
	if f.addErr != nil {
		return models.StreamSession{}, f.addErr
	}
	s := models.StreamSession{Route: route, Input: input, State: models.Running, URL: relay.StreamURL("", route)}
	f.sessions[route] = s
	return s, nil
}

func (f *fakeRegistry) Remove(route string) (map[string]models.StreamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes = append(f.removes, route)
	if f.removeErr != nil {
		return f.copyLocked(), f.removeErr
	}
	delete(f.sessions, route)
	return f.copyLocked(), nil
}

func (f *fakeRegistry) List() map[string]models.StreamSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.copyLocked()
}

func (f *fakeRegistry) copyLocked() map[string]models.StreamSession {
	out := make(map[string]models.StreamSession, len(f.sessions))
	for k, v := range f.sessions {
		out[k] = v
	}
	return out
}

func (f *fakeRegistry) StateCounts() map[models.SessionState]int {
	counts := make(map[models.SessionState]int)
	for _, s := range f.List() {
		counts[s.State]++
	}
	return counts
}

func setup(t *testing.T) (*fakeRegistry, string) {
	t.Helper()
	reg := newFakeRegistry()
	dataDir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, Init(&APIHandler{
		Registry:     reg,
		DataDir:      dataDir,
		Metrics:      metrics.New(),
		LiveInterval: 10 * time.Millisecond,
	}))
	return reg, dataDir
}

func do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	Router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestIndex(t *testing.T) {
	setup(t)
	rec := do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, BuildVersion, decode(t, rec)["version"])
}

func TestStreamAddWithInput(t *testing.T) {
	reg, _ := setup(t)
	rec := do(httptest.NewRequest(http.MethodPost, "/streams?route=cam1&input=rtsp://10.0.0.5/live", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []addCall{{"cam1", "rtsp://10.0.0.5/live"}}, reg.adds)

	msg := decode(t, rec)["message"].(map[string]interface{})
	assert.Equal(t, "running", msg["state"])
	assert.Equal(t, "rtsp://localhost:8554/cam1", msg["url"])
}

func TestStreamAddFormInput(t *testing.T) {
	reg, _ := setup(t)
	req := httptest.NewRequest(http.MethodPost, "/streams", strings.NewReader("route=cam2&input=/dev/video0"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []addCall{{"cam2", "/dev/video0"}}, reg.adds)
}

func TestStreamAddMissingInput(t *testing.T) {
	reg, _ := setup(t)
	rec := do(httptest.NewRequest(http.MethodPost, "/streams?route=cam1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, reg.adds)
}

func uploadRequest(t *testing.T, route, name string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/streams?route="+route, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestStreamAddUpload(t *testing.T) {
	reg, dataDir := setup(t)
	rec := do(uploadRequest(t, "clip", "../../clip.mp4", []byte("fake video")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, reg.adds, 1)
	saved := reg.adds[0].input
	assert.Equal(t, dataDir, filepath.Dir(saved))
	assert.True(t, strings.HasSuffix(saved, "-clip.mp4"), saved)
	b, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, "fake video", string(b))
}

func TestStreamAddErrorRemovesUpload(t *testing.T) {
	reg, dataDir := setup(t)
	reg.addErr = &relay.DuplicateRouteError{Route: "clip"}

	rec := do(uploadRequest(t, "clip", "clip.mp4", []byte("fake video")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, `DuplicateRouteError: route "clip" already exists`, decode(t, rec)["detail"])

	entries, err := os.ReadDir(dataDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStreamList(t *testing.T) {
	reg, _ := setup(t)
	reg.Add(context.Background(), "cam1", "/dev/video0")

	rec := do(httptest.NewRequest(http.MethodGet, "/streams", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	msg := decode(t, rec)["message"].(map[string]interface{})
	cam1 := msg["cam1"].(map[string]interface{})
	assert.Equal(t, "/dev/video0", cam1["input"])
	assert.Equal(t, "running", cam1["state"])
}

func TestStreamDelete(t *testing.T) {
	reg, _ := setup(t)
	reg.Add(context.Background(), "cam1", "/dev/video0")
	reg.Add(context.Background(), "cam2", "/dev/video1")

	req := httptest.NewRequest(http.MethodDelete, "/streams", strings.NewReader(`{"route": "cam1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"cam1"}, reg.removes)
	msg := decode(t, rec)["message"].(map[string]interface{})
	assert.Len(t, msg, 1)
	assert.Contains(t, msg, "cam2")
}

func TestStreamDeleteErrors(t *testing.T) {
	reg, _ := setup(t)

	req := httptest.NewRequest(http.MethodDelete, "/streams", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, do(req).Code)

	reg.removeErr = &relay.RouteNotFoundError{Route: "ghost"}
	req = httptest.NewRequest(http.MethodDelete, "/streams", strings.NewReader(`{"route": "ghost"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := do(req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, `RouteNotFoundError: route "ghost" not found`, decode(t, rec)["detail"])
}

func TestSessions(t *testing.T) {
	reg, _ := setup(t)
	reg.Add(context.Background(), "cam1", "/dev/video0")
	reg.Add(context.Background(), "cam2", "/dev/video1")
	reg.Add(context.Background(), "lobby", "rtsp://10.0.0.5/live")

	rec := do(httptest.NewRequest(http.MethodGet, "/api/v1/sessions?q=cam", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.EqualValues(t, 2, body["total"])
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "rtsp://10.1.1.1:8554/cam1", publicURL("rtsp://localhost:8554/cam1", "10.1.1.1"))
	assert.Equal(t, "rtsp://media.lan:8554/cam1", publicURL("rtsp://media.lan:8554/cam1", "10.1.1.1"))
	assert.Equal(t, "", publicURL("", "10.1.1.1"))
}

func TestHealth(t *testing.T) {
	reg, _ := setup(t)
	reg.Add(context.Background(), "cam1", "/dev/video0")

	rec := do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	sessions := decode(t, rec)["sessions"].(map[string]interface{})
	assert.EqualValues(t, 1, sessions["running"])
	assert.EqualValues(t, 0, sessions["failed"])
}

func TestMetricsEndpoint(t *testing.T) {
	setup(t)
	rec := do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rtsp4k_frames_relayed_total")
}

func TestStreamsLive(t *testing.T) {
	reg, _ := setup(t)
	reg.Add(context.Background(), "cam1", "/dev/video0")

	srv := httptest.NewServer(Router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/streams/live", nil)
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 2; i++ {
		var body struct {
			Message map[string]models.StreamSession `json:"message"`
		}
		require.NoError(t, conn.ReadJSON(&body))
		assert.Equal(t, models.Running, body.Message["cam1"].State)
	}
}
