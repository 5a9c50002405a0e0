package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/video-transcript/internal/egress"
	"github.com/codebuildervaibhav/video-transcript/internal/types"
)

var (
	ErrTooManyRequests  = errors.New("too many requests")
	ErrVideoUnavailable = errors.New("video unavailable")
)

const (
	captionsNeedle   = `"captions":`
	recaptchaMarker  = `class="g-recaptcha"`
	playabilityField = `"playabilityStatus":`
	maxWatchPageSize = 6 * 1024 * 1024
	maxCaptionSize   = 2 * 1024 * 1024
)

var htmlTagRE = regexp.MustCompile(`<[^>]*>`)

// CaptionClient retrieves caption tracks from YouTube watch pages
type CaptionClient struct {
	client    *egress.Client
	watchURL  string
	languages []string
	log       zerolog.Logger
}

// NewCaptionClient creates a caption client. languages lists the preferred
// caption languages in priority order; it defaults to English.
func NewCaptionClient(client *egress.Client, watchURL string, languages []string, log zerolog.Logger) *CaptionClient {
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	if watchURL == "" {
		watchURL = "https://www.youtube.com/watch"
	}
	return &CaptionClient{
		client:    client,
		watchURL:  watchURL,
		languages: languages,
		log:       log,
	}
}

// Transcript fetches the captions of a video formatted as "start: text" lines.
//
// types.ErrCaptionsDisabled and types.ErrNoCaptionsFound mark a video that
// has no usable captions; every other error is a lookup failure.
func (cc *CaptionClient) Transcript(ctx context.Context, videoID string) ([]string, error) {
	entries, err := cc.Entries(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return FormatCaptions(entries), nil
}

// Entries fetches the raw caption entries of the best matching track.
func (cc *CaptionClient) Entries(ctx context.Context, videoID string) ([]types.CaptionEntry, error) {
	tracks, err := cc.captionTracks(ctx, videoID)
	if err != nil {
		return nil, err
	}

	track, ok := pickTrack(tracks, cc.languages)
	if !ok {
		return nil, fmt.Errorf("video %q has no captions in %v: %w", videoID, cc.languages, types.ErrNoCaptionsFound)
	}

	cc.log.Debug().
		Str("video_id", videoID).
		Str("language", track.LanguageCode).
		Str("kind", track.Kind).
		Msg("Selected caption track")

	return cc.fetchTrack(ctx, track.BaseURL)
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

func (cc *CaptionClient) captionTracks(ctx context.Context, videoID string) ([]captionTrack, error) {
	watch := cc.watchURL + "?" + url.Values{"v": {videoID}, "hl": {"en"}}.Encode()
	resp, err := cc.client.Get(ctx, watch, http.Header{"Accept-Language": {"en-US"}})
	if err != nil {
		var statusErr *egress.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("watch page %q: %w", videoID, ErrTooManyRequests)
		}
		return nil, fmt.Errorf("requesting watch page: %w", err)
	}
	defer resp.Body.Close()

	page, err := io.ReadAll(io.LimitReader(resp.Body, maxWatchPageSize))
	if err != nil {
		return nil, fmt.Errorf("reading watch page: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("watch page %q returned status %d", videoID, resp.StatusCode)
	}

	return parseCaptionTracks(videoID, page)
}

// parseCaptionTracks extracts the caption track list embedded in a watch page.
func parseCaptionTracks(videoID string, page []byte) ([]captionTrack, error) {
	i := bytes.Index(page, []byte(captionsNeedle))
	if i < 0 {
		switch {
		case bytes.Contains(page, []byte(recaptchaMarker)):
			return nil, fmt.Errorf("video %q got captcha: %w", videoID, ErrTooManyRequests)
		case !bytes.Contains(page, []byte(playabilityField)):
			return nil, fmt.Errorf("video %q not found: %w", videoID, ErrVideoUnavailable)
		case bytes.Contains(page, []byte(`"status":"ERROR"`)):
			return nil, fmt.Errorf("video %q not playable: %w", videoID, ErrVideoUnavailable)
		}
		return nil, fmt.Errorf("video %q: %w", videoID, types.ErrCaptionsDisabled)
	}

	var data struct {
		Renderer *struct {
			Tracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	}

	// The decoder stops after the captions object, ignoring the rest of the page.
	dec := json.NewDecoder(bytes.NewReader(page[i+len(captionsNeedle):]))
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding captions json: %w", err)
	}

	if data.Renderer == nil || len(data.Renderer.Tracks) == 0 {
		return nil, fmt.Errorf("video %q has no caption tracks: %w", videoID, types.ErrCaptionsDisabled)
	}
	return data.Renderer.Tracks, nil
}

// pickTrack returns the first track matching the preferred languages in
// order, preferring a manual track over an auto-generated one for each language.
func pickTrack(tracks []captionTrack, languages []string) (captionTrack, bool) {
	for _, lang := range languages {
		for _, t := range tracks {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
		for _, t := range tracks {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	return captionTrack{}, false
}

type timedText struct {
	XMLName xml.Name `xml:"transcript"`
	Texts   []struct {
		Start    float64 `xml:"start,attr"`
		Duration float64 `xml:"dur,attr"`
		Text     string  `xml:",chardata"`
	} `xml:"text"`
}

func (cc *CaptionClient) fetchTrack(ctx context.Context, baseURL string) ([]types.CaptionEntry, error) {
	resp, err := cc.client.Get(ctx, strings.Replace(baseURL, "&fmt=srv3", "", 1), nil)
	if err != nil {
		return nil, fmt.Errorf("captions request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCaptionSize))
	if err != nil {
		return nil, fmt.Errorf("reading captions body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("captions file status code %d", resp.StatusCode)
	}

	return parseTimedText(body)
}

func parseTimedText(body []byte) ([]types.CaptionEntry, error) {
	var tt timedText
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Entity = xml.HTMLEntity
	if err := dec.Decode(&tt); err != nil {
		return nil, fmt.Errorf("decoding captions XML: %w", err)
	}

	entries := make([]types.CaptionEntry, 0, len(tt.Texts))
	for _, t := range tt.Texts {
		// only elements without any text are dropped
		if t.Text == "" {
			continue
		}
		entries = append(entries, types.CaptionEntry{
			Start:    t.Start,
			Duration: t.Duration,
			Text:     htmlTagRE.ReplaceAllString(html.UnescapeString(t.Text), ""),
		})
	}
	return entries, nil
}
