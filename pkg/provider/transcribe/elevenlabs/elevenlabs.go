// Package elevenlabs provides a speech-to-text provider backed by the
// ElevenLabs Scribe API.
//
// Audio is uploaded as multipart/form-data to POST /v1/speech-to-text with
// the xi-api-key header. The response carries the transcript plus word-level
// entries that this package regroups into per-speaker segments and tagged
// audio events.
//
// Usage:
//
//	p, err := elevenlabs.New(apiKey,
//	    elevenlabs.WithModel("scribe_v1"),
//	    elevenlabs.WithTimeout(60*time.Second),
//	)
//	res, err := p.Transcribe(ctx, transcribe.Request{FilePath: path, Language: "auto"})
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"time"

	"github.com/talkscribe/talkscribe/pkg/provider/transcribe"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModel   = "scribe_v1"
	defaultTimeout = 120 * time.Second
)

// Compile-time assertion that Provider implements transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

// contentTypes maps audio file extensions to the MIME type sent in the
// multipart file part.
var contentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".aac":  "audio/aac",
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the Scribe model identifier. Defaults to "scribe_v1".
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL overrides the default API base URL. Useful for tests.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		if url != "" {
			p.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithTimeout sets the per-call timeout budget applied to each Transcribe
// invocation. Defaults to 120s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// Provider implements transcribe.Provider against the ElevenLabs API.
// It is safe for concurrent use.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

// New creates a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		timeout:    defaultTimeout,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements transcribe.Provider. It issues exactly one HTTP call;
// the per-attempt timeout is derived from the provider's configured budget.
func (p *Provider) Transcribe(ctx context.Context, req transcribe.Request) (*transcribe.Result, error) {
	audio, err := os.ReadFile(req.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("elevenlabs: audio file not found: %w", err)
		}
		return nil, fmt.Errorf("elevenlabs: read audio: %w", err)
	}

	body, contentType, err := buildForm(p.model, req, audio)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build form: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	endpoint := p.baseURL + "/v1/speech-to-text"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &transcribe.TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transcribe.TransportError{Message: "read response: " + err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, data)
	}

	result, err := parseResponse(data)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: %w", err)
	}
	return result, nil
}

// Health implements transcribe.Provider by probing GET /v1/user, which
// validates both reachability and the API key.
func (p *Provider) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/user", nil)
	if err != nil {
		return fmt.Errorf("elevenlabs: create request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs: health probe: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, nil)
	}
	return nil
}

// buildForm assembles the multipart request body. The language_code field is
// omitted when the hint is empty or "auto" so the provider detects it.
func buildForm(model string, req transcribe.Request, audio []byte) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	filename := filepath.Base(req.FilePath)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, "", err
	}

	if err := mw.WriteField("model_id", model); err != nil {
		return nil, "", err
	}
	if lang := req.Language; lang != "" && lang != "auto" {
		if err := mw.WriteField("language_code", lang); err != nil {
			return nil, "", err
		}
	}
	if err := mw.WriteField("diarize", strconv.FormatBool(req.Diarize)); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("tag_audio_events", strconv.FormatBool(req.TagAudioEvents)); err != nil {
		return nil, "", err
	}
	if req.WordTimestamps {
		if err := mw.WriteField("timestamps_granularity", "word"); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &body, mw.FormDataContentType(), nil
}

// statusError maps a non-2xx status to a TransportError whose message uses
// the canonical phrases the retry classifier matches on.
func statusError(status int, body []byte) *transcribe.TransportError {
	msg := ""
	switch status {
	case http.StatusUnauthorized:
		msg = "invalid API key"
	case http.StatusRequestEntityTooLarge:
		msg = "file too large"
	case http.StatusTooManyRequests:
		msg = "rate limit exceeded"
	default:
		msg = http.StatusText(status)
		if excerpt := bodyExcerpt(body); excerpt != "" {
			msg += ": " + excerpt
		}
	}
	return &transcribe.TransportError{Status: status, Message: msg}
}

// bodyExcerpt returns up to 200 bytes of the response body for diagnostics.
func bodyExcerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// apiResponse mirrors the Scribe transcription response body.
type apiResponse struct {
	Text                string  `json:"text"`
	LanguageCode        string  `json:"language_code"`
	LanguageProbability float64 `json:"language_probability"`
	Words               []struct {
		Text      string  `json:"text"`
		Start     float64 `json:"start"`
		End       float64 `json:"end"`
		Type      string  `json:"type"`
		SpeakerID string  `json:"speaker_id"`
	} `json:"words"`
}

// parseResponse decodes the API body into a normalized Result. Word entries
// are regrouped: contiguous runs of words by the same speaker become one
// segment, and "audio_event" entries become AudioEvents.
func parseResponse(data []byte) (*transcribe.Result, error) {
	var api apiResponse
	if err := json.Unmarshal(data, &api); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	result := &transcribe.Result{
		Text:       strings.TrimSpace(api.Text),
		Language:   api.LanguageCode,
		Confidence: api.LanguageProbability,
	}
	if result.Language == "" {
		result.Language = "unknown"
	}

	speakerIdx := map[string]int{}
	var (
		curSpeaker string
		curSegment *transcribe.Segment
	)
	flush := func() {
		if curSegment == nil {
			return
		}
		idx, ok := speakerIdx[curSpeaker]
		if !ok {
			idx = len(result.Speakers)
			speakerIdx[curSpeaker] = idx
			result.Speakers = append(result.Speakers, transcribe.Speaker{ID: curSpeaker})
		}
		curSegment.Text = strings.TrimSpace(curSegment.Text)
		result.Speakers[idx].Segments = append(result.Speakers[idx].Segments, *curSegment)
		curSegment = nil
	}

	for _, w := range api.Words {
		switch w.Type {
		case "audio_event":
			result.AudioEvents = append(result.AudioEvents, transcribe.AudioEvent{
				Type:        strings.Trim(w.Text, "()"),
				Start:       w.Start,
				End:         w.End,
				Description: w.Text,
			})

		case "spacing":
			if curSegment != nil {
				curSegment.Text += w.Text
			}

		default:
			if w.SpeakerID == "" {
				// Diarization disabled: nothing to group.
				continue
			}
			if curSegment == nil || w.SpeakerID != curSpeaker {
				flush()
				curSpeaker = w.SpeakerID
				curSegment = &transcribe.Segment{Start: w.Start}
			}
			if curSegment.Text != "" && !strings.HasSuffix(curSegment.Text, " ") {
				curSegment.Text += " "
			}
			curSegment.Text += w.Text
			curSegment.End = w.End
		}
	}
	flush()

	return result, nil
}
