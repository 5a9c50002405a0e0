package transcription

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	tctypes "github.com/aws/aws-sdk-go-v2/service/transcribe/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/video-transcript/internal/types"
)

// fakeTranscribe reports the statuses in order, repeating the last one.
type fakeTranscribe struct {
	statuses      []tctypes.TranscriptionJobStatus
	transcriptURI string
	failure       string
	startErr      error

	mu       sync.Mutex
	started  *transcribe.StartTranscriptionJobInput
	getCalls int
}

func (f *fakeTranscribe) StartTranscriptionJob(ctx context.Context, in *transcribe.StartTranscriptionJobInput, _ ...func(*transcribe.Options)) (*transcribe.StartTranscriptionJobOutput, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.mu.Lock()
	f.started = in
	f.mu.Unlock()
	return &transcribe.StartTranscriptionJobOutput{}, nil
}

func (f *fakeTranscribe) GetTranscriptionJob(ctx context.Context, in *transcribe.GetTranscriptionJobInput, _ ...func(*transcribe.Options)) (*transcribe.GetTranscriptionJobOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.getCalls
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.getCalls++

	job := &tctypes.TranscriptionJob{
		TranscriptionJobName:   in.TranscriptionJobName,
		TranscriptionJobStatus: f.statuses[i],
	}
	switch f.statuses[i] {
	case tctypes.TranscriptionJobStatusCompleted:
		job.Transcript = &tctypes.Transcript{TranscriptFileUri: aws.String(f.transcriptURI)}
	case tctypes.TranscriptionJobStatusFailed:
		job.FailureReason = aws.String(f.failure)
	}
	return &transcribe.GetTranscriptionJobOutput{TranscriptionJob: job}, nil
}

type recordedStatus struct{ job, status, detail string }

type fakeRecorder struct {
	mu       sync.Mutex
	created  []string
	statuses []recordedStatus
}

func (r *fakeRecorder) CreateJob(ctx context.Context, jobName, videoID, sourceURI string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, jobName)
	return nil
}

func (r *fakeRecorder) UpdateJobStatus(ctx context.Context, jobName, status, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, recordedStatus{jobName, status, detail})
	return nil
}

const resultJSON = `{"jobName":"job","status":"COMPLETED","results":{
 "transcripts":[{"transcript":"hi there."}],
 "items":[
  {"start_time":"0.1","end_time":"0.3","alternatives":[{"confidence":"0.9","content":"hi"}],"type":"pronunciation"},
  {"start_time":"0.4","end_time":"0.6","alternatives":[{"confidence":"0.9","content":"there"}],"type":"pronunciation"},
  {"alternatives":[{"confidence":"0.0","content":"."}],"type":"punctuation"}]}}`

func newResultServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resultJSON))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testJobConfig() JobConfig {
	return JobConfig{PollInterval: time.Millisecond, Timeout: time.Second}
}

func TestRunPollsUntilCompleted(t *testing.T) {
	srv := newResultServer(t)
	api := &fakeTranscribe{
		statuses: []tctypes.TranscriptionJobStatus{
			tctypes.TranscriptionJobStatusQueued,
			tctypes.TranscriptionJobStatusInProgress,
			tctypes.TranscriptionJobStatusInProgress,
			tctypes.TranscriptionJobStatusCompleted,
		},
		transcriptURI: srv.URL + "/result.json",
	}
	rec := &fakeRecorder{}
	r := NewJobRunner(api, rec, srv.Client(), testJobConfig(), zerolog.Nop())

	doc, err := r.Run(context.Background(), "abc123", "transcription-abc123-1", "s3://bucket/abc123.mp3")
	require.NoError(t, err)

	assert.Equal(t, 4, api.getCalls)
	assert.Equal(t, "transcription-abc123-1", aws.ToString(api.started.TranscriptionJobName))
	assert.Equal(t, "s3://bucket/abc123.mp3", aws.ToString(api.started.Media.MediaFileUri))
	assert.Equal(t, tctypes.MediaFormatMp3, api.started.MediaFormat)
	assert.Equal(t, tctypes.LanguageCodeEnUs, api.started.LanguageCode)

	assert.Equal(t, []string{"0.1: hi there"}, GroupSegments(doc))

	assert.Equal(t, []string{"transcription-abc123-1"}, rec.created)
	var seen []string
	for _, s := range rec.statuses {
		seen = append(seen, s.status)
	}
	assert.Equal(t, []string{types.StatusQueued, types.StatusInProgress, types.StatusCompleted}, seen)
}

func TestRunJobFailed(t *testing.T) {
	api := &fakeTranscribe{
		statuses: []tctypes.TranscriptionJobStatus{tctypes.TranscriptionJobStatusFailed},
		failure:  "unsupported media",
	}
	rec := &fakeRecorder{}
	r := NewJobRunner(api, rec, nil, testJobConfig(), zerolog.Nop())

	_, err := r.Run(context.Background(), "abc123", "job", "s3://b/k")
	require.ErrorIs(t, err, types.ErrTranscriptionJob)
	assert.Contains(t, err.Error(), "unsupported media")
	require.Len(t, rec.statuses, 1)
	assert.Equal(t, recordedStatus{"job", types.StatusFailed, "unsupported media"}, rec.statuses[0])
}

func TestRunTimesOut(t *testing.T) {
	api := &fakeTranscribe{statuses: []tctypes.TranscriptionJobStatus{tctypes.TranscriptionJobStatusInProgress}}
	rec := &fakeRecorder{}
	r := NewJobRunner(api, rec, nil, JobConfig{PollInterval: time.Millisecond, Timeout: 20 * time.Millisecond}, zerolog.Nop())

	_, err := r.Run(context.Background(), "abc123", "job", "s3://b/k")
	require.ErrorIs(t, err, types.ErrTranscriptionTimeout)

	last := rec.statuses[len(rec.statuses)-1]
	assert.Equal(t, types.StatusTimedOut, last.status)
}

func TestRunCanceledByCaller(t *testing.T) {
	api := &fakeTranscribe{statuses: []tctypes.TranscriptionJobStatus{tctypes.TranscriptionJobStatusInProgress}}
	r := NewJobRunner(api, nil, nil, JobConfig{PollInterval: time.Millisecond, Timeout: time.Minute}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, "abc123", "job", "s3://b/k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrTranscriptionTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunStartFailure(t *testing.T) {
	api := &fakeTranscribe{startErr: errors.New("AccessDenied")}
	r := NewJobRunner(api, nil, nil, testJobConfig(), zerolog.Nop())

	_, err := r.Run(context.Background(), "abc123", "job", "s3://b/k")
	assert.ErrorIs(t, err, types.ErrTranscriptionJob)
	assert.Equal(t, 0, api.getCalls)
}

func TestJobName(t *testing.T) {
	assert.Equal(t, "transcription-abc123-1700000000", JobName("abc123", time.Unix(1700000000, 0)))
}
