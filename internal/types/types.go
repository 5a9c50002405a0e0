package types

import (
	"encoding/json"
	"errors"
	"time"
)

// Transcription job status constants
const (
	StatusQueued     = "QUEUED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
	StatusTimedOut   = "TIMED_OUT"
)

// Transcript source constants
const (
	SourceCaptions      = "captions"
	SourceTranscription = "transcription"
)

// UnavailableReason is the transcript placeholder used when the fallback
// pipeline fails under the degrade policy.
const UnavailableReason = "Transcript could not be fetched."

var (
	ErrMetadata             = errors.New("metadata error")
	ErrNoCaptionsFound      = errors.New("no captions found")
	ErrCaptionsDisabled     = errors.New("captions disabled")
	ErrDownload             = errors.New("download error")
	ErrUpload               = errors.New("upload error")
	ErrTranscriptionJob     = errors.New("transcription job failed")
	ErrTranscriptionTimeout = errors.New("transcription job timed out")
	ErrFallback             = errors.New("failed to fetch transcript via fallback")
)

// IsCaptionFallback reports whether err is one of the caption failures that
// allow falling back to audio transcription.
func IsCaptionFallback(err error) bool {
	return errors.Is(err, ErrNoCaptionsFound) || errors.Is(err, ErrCaptionsDisabled)
}

// VideoMetadata is the snippet subset returned by the metadata API
type VideoMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Channel     string `json:"channel"`
}

// VideoInfo is the response for a single video
type VideoInfo struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Channel     string           `json:"channel"`
	Transcript  TranscriptResult `json:"transcript"`
}

// TranscriptResult is either an ordered list of segments or the reason no
// transcript is available. The zero value is an empty segment list.
type TranscriptResult struct {
	segments []string
	reason   string
	source   string
}

// Segments returns a result holding the given transcript lines.
func Segments(lines []string, source string) TranscriptResult {
	if lines == nil {
		lines = []string{}
	}
	return TranscriptResult{segments: lines, source: source}
}

// Unavailable returns a result carrying only a failure reason.
func Unavailable(reason string) TranscriptResult {
	return TranscriptResult{reason: reason}
}

// Available reports whether the result holds segments.
func (t TranscriptResult) Available() bool { return t.reason == "" }

// Lines returns the transcript lines, nil when unavailable.
func (t TranscriptResult) Lines() []string { return t.segments }

// Reason returns the failure reason, "" when available.
func (t TranscriptResult) Reason() string { return t.reason }

// Source returns where the segments came from (captions or transcription).
func (t TranscriptResult) Source() string { return t.source }

// MarshalJSON encodes segments as a JSON array and an unavailable result as
// its plain reason string.
func (t TranscriptResult) MarshalJSON() ([]byte, error) {
	if !t.Available() {
		return json.Marshal(t.reason)
	}
	if t.segments == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.segments)
}

// UnmarshalJSON accepts either form produced by MarshalJSON.
func (t *TranscriptResult) UnmarshalJSON(data []byte) error {
	var reason string
	if err := json.Unmarshal(data, &reason); err == nil {
		*t = Unavailable(reason)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return err
	}
	*t = Segments(lines, "")
	return nil
}

// CaptionEntry is one timed line of a caption track
type CaptionEntry struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

// TranscriptDocument matches the result JSON written by the transcription service
type TranscriptDocument struct {
	JobName string `json:"jobName"`
	Status  string `json:"status"`
	Results struct {
		Transcripts []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
		Items []TranscriptItem `json:"items"`
	} `json:"results"`
}

// TranscriptItem is a single word or punctuation mark in a TranscriptDocument
type TranscriptItem struct {
	Type         string        `json:"type"`
	StartTime    string        `json:"start_time,omitempty"`
	EndTime      string        `json:"end_time,omitempty"`
	Alternatives []Alternative `json:"alternatives"`
}

// Alternative is a candidate word for a TranscriptItem
type Alternative struct {
	Confidence string `json:"confidence"`
	Content    string `json:"content"`
}

// Word returns the first alternative's content, "" when there is none.
func (i TranscriptItem) Word() string {
	if len(i.Alternatives) == 0 {
		return ""
	}
	return i.Alternatives[0].Content
}

// JobRecord is a transcription job as tracked by the job registry
type JobRecord struct {
	ID        string    `json:"id"`
	JobName   string    `json:"job_name"`
	VideoID   string    `json:"video_id"`
	SourceURI string    `json:"source_uri"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
