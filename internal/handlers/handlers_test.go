package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/video-transcript/internal/storage"
	"github.com/codebuildervaibhav/video-transcript/internal/types"
	"github.com/codebuildervaibhav/video-transcript/internal/videoinfo"
)

type fakeService struct {
	info *types.VideoInfo
	err  error
}

func (f *fakeService) Get(ctx context.Context, videoID string) (*types.VideoInfo, error) {
	return f.info, f.err
}

func (f *fakeService) Watch(ctx context.Context, videoID string, obs videoinfo.Observer) (*types.VideoInfo, error) {
	obs(videoinfo.StageMetadata)
	obs(videoinfo.StageCaptions)
	if f.err != nil {
		return nil, f.err
	}
	obs(videoinfo.StageDone)
	return f.info, nil
}

type fakeJobs struct {
	jobs      []types.JobRecord
	lastLimit int
}

func (f *fakeJobs) GetJob(ctx context.Context, name string) (*types.JobRecord, error) {
	for i := range f.jobs {
		if f.jobs[i].JobName == name {
			return &f.jobs[i], nil
		}
	}
	return nil, fmt.Errorf("%s: %w", name, storage.ErrJobNotFound)
}

func (f *fakeJobs) ListJobs(ctx context.Context, limit int) ([]types.JobRecord, error) {
	f.lastLimit = limit
	return f.jobs, nil
}

func newApp(svc VideoInfoService, jobs JobStore) *fiber.App {
	app := fiber.New()
	vh := NewVideoInfoHandler(svc, zerolog.Nop())
	jh := NewJobsHandler(jobs, zerolog.Nop())
	sh := NewStreamHandler(svc, zerolog.Nop())

	app.Get("/video-info/:video_id", vh.Handle)
	app.Get("/jobs", jh.List)
	app.Get("/jobs/:name", jh.Get)
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/video-info/:video_id", websocket.New(sh.Handle))
	return app
}

func decode(t *testing.T, body io.Reader, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(body).Decode(v))
}

func TestVideoInfoOK(t *testing.T) {
	svc := &fakeService{info: &types.VideoInfo{
		Title: "T", Description: "D", Channel: "C",
		Transcript: types.Segments([]string{"0.0: hi"}, types.SourceCaptions),
	}}
	app := newApp(svc, &fakeJobs{})

	resp, err := app.Test(httptest.NewRequest("GET", "/video-info/abc123", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"title":"T","description":"D","channel":"C","transcript":["0.0: hi"]}`, string(body))
}

func TestVideoInfoUnavailableTranscript(t *testing.T) {
	svc := &fakeService{info: &types.VideoInfo{
		Title:      "T",
		Transcript: types.Unavailable(types.UnavailableReason),
	}}
	app := newApp(svc, &fakeJobs{})

	resp, err := app.Test(httptest.NewRequest("GET", "/video-info/abc123", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out map[string]any
	decode(t, resp.Body, &out)
	assert.Equal(t, "Transcript could not be fetched.", out["transcript"])
}

func TestVideoInfoError(t *testing.T) {
	svc := &fakeService{err: fmt.Errorf("%w: failed to fetch video info: 403", types.ErrMetadata)}
	app := newApp(svc, &fakeJobs{})

	resp, err := app.Test(httptest.NewRequest("GET", "/video-info/abc123", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var out map[string]string
	decode(t, resp.Body, &out)
	assert.Equal(t, "metadata error: failed to fetch video info: 403", out["detail"])
}

func TestJobsEndpoints(t *testing.T) {
	jobs := &fakeJobs{jobs: []types.JobRecord{
		{JobName: "transcription-abc123-1", VideoID: "abc123", Status: types.StatusCompleted},
	}}
	app := newApp(&fakeService{}, jobs)

	resp, err := app.Test(httptest.NewRequest("GET", "/jobs/transcription-abc123-1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var rec types.JobRecord
	decode(t, resp.Body, &rec)
	assert.Equal(t, types.StatusCompleted, rec.Status)

	resp, err = app.Test(httptest.NewRequest("GET", "/jobs/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/jobs?limit=5", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, jobs.lastLimit)
	var list []types.JobRecord
	decode(t, resp.Body, &list)
	assert.Len(t, list, 1)

	_, err = app.Test(httptest.NewRequest("GET", "/jobs?limit=100000", nil))
	require.NoError(t, err)
	assert.Equal(t, maxJobLimit, jobs.lastLimit)
}

func serve(t *testing.T, app *fiber.App) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })
	return ln.Addr().String()
}

func readAll(t *testing.T, conn *fastws.Conn) []map[string]json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msgs []map[string]json.RawMessage
	for {
		var m map[string]json.RawMessage
		if err := conn.ReadJSON(&m); err != nil {
			return msgs
		}
		msgs = append(msgs, m)
	}
}

func TestStreamSendsStagesAndResult(t *testing.T) {
	svc := &fakeService{info: &types.VideoInfo{
		Title:      "T",
		Transcript: types.Segments([]string{"0.0: hi"}, types.SourceCaptions),
	}}
	addr := serve(t, newApp(svc, &fakeJobs{}))

	conn, _, err := fastws.DefaultDialer.Dial("ws://"+addr+"/ws/video-info/abc123", nil)
	require.NoError(t, err)
	defer conn.Close()

	msgs := readAll(t, conn)
	require.Len(t, msgs, 4)
	assert.JSONEq(t, `"metadata"`, string(msgs[0]["stage"]))
	assert.JSONEq(t, `"captions"`, string(msgs[1]["stage"]))
	assert.JSONEq(t, `"done"`, string(msgs[2]["stage"]))

	var info types.VideoInfo
	require.NoError(t, json.Unmarshal(msgs[3]["result"], &info))
	assert.Equal(t, "T", info.Title)
	assert.Equal(t, []string{"0.0: hi"}, info.Transcript.Lines())
}

func TestStreamSendsDetailOnError(t *testing.T) {
	svc := &fakeService{err: errors.New("connection reset")}
	addr := serve(t, newApp(svc, &fakeJobs{}))

	conn, _, err := fastws.DefaultDialer.Dial("ws://"+addr+"/ws/video-info/abc123", nil)
	require.NoError(t, err)
	defer conn.Close()

	msgs := readAll(t, conn)
	require.Len(t, msgs, 3)
	assert.JSONEq(t, `"connection reset"`, string(msgs[2]["detail"]))
}

type failingWriter struct{ err error }

func (w failingWriter) WriteJSON(v interface{}) error { return w.err }

func TestSendLogsWriteFailure(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	send(failingWriter{err: errors.New("broken pipe")}, errorMessage{Detail: "metadata error"}, log, zerolog.WarnLevel)

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"error":"broken pipe"`)
	assert.Contains(t, out, `"message_type":"handlers.errorMessage"`)
}
