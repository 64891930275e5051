// Package pipeline coordinates the audio processing flow: file validation,
// speech-to-text transcription with retries, then grammar analysis. The
// stages degrade independently so a grammar outage never loses a
// transcription.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/talkscribe/talkscribe/internal/files"
	"github.com/talkscribe/talkscribe/internal/grammar"
	"github.com/talkscribe/talkscribe/internal/observe"
	"github.com/talkscribe/talkscribe/internal/retry"
	"github.com/talkscribe/talkscribe/pkg/provider/transcribe"
)

// ErrNoSpeech reports that transcription succeeded but produced no text.
var ErrNoSpeech = errors.New("No speech detected in audio file")

// transcribeNonRetryable lists error substrings that make a transcription
// attempt pointless to retry.
var transcribeNonRetryable = []string{
	"invalid API key",
	"file too large",
	"audio file not found",
	"authentication",
}

// Checker is the grammar stage consumed by the pipeline, satisfied by
// *grammar.Checker.
type Checker interface {
	Check(ctx context.Context, text string) *grammar.Analysis
	Health(ctx context.Context) error
}

// Result is the outcome of processing one audio file.
type Result struct {
	// Success reports whether a transcription was produced. Grammar failures
	// do not clear it.
	Success bool

	// Transcription holds the speech-to-text output. Nil when transcription
	// failed.
	Transcription *transcribe.Result

	// Grammar holds the grammar analysis of the transcription. Nil when
	// transcription failed or produced no text.
	Grammar *grammar.Analysis

	// TranscribeRetries is the retry accounting for the transcription stage.
	TranscribeRetries int

	// Duration is the end-to-end processing time.
	Duration time.Duration

	// Err carries the terminal user-facing message when Success is false.
	Err string
}

// Text returns the best available rendition of what was said: the grammar
// correction when one exists, else the raw transcription.
func (r *Result) Text() string {
	if r.Grammar != nil && r.Grammar.Success {
		return r.Grammar.CorrectedText
	}
	if r.Transcription != nil {
		return r.Transcription.Text
	}
	return ""
}

// Option configures a Processor.
type Option func(*Processor)

// WithRetryPolicy overrides the transcription retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(pr *Processor) {
		if len(p.NonRetryable) == 0 {
			p.NonRetryable = transcribeNonRetryable
		}
		pr.policy = p
	}
}

// WithLanguage pins the transcription language ("auto" detects). Default: auto.
func WithLanguage(lang string) Option {
	return func(pr *Processor) { pr.language = lang }
}

// WithDiarization toggles speaker diarization.
func WithDiarization(on bool) Option {
	return func(pr *Processor) { pr.diarize = on }
}

// WithMetrics overrides the metrics sink (tests use a manual reader).
func WithMetrics(m *observe.Metrics) Option {
	return func(pr *Processor) { pr.metrics = m }
}

// Processor runs audio files through transcription and grammar analysis.
// Safe for concurrent use.
type Processor struct {
	stt     transcribe.Provider
	checker Checker
	store   *files.Store
	metrics *observe.Metrics

	policy   retry.Policy
	language string
	diarize  bool
}

// New creates a Processor over the given providers and temp file store.
func New(stt transcribe.Provider, checker Checker, store *files.Store, opts ...Option) *Processor {
	p := &Processor{
		stt:      stt,
		checker:  checker,
		store:    store,
		policy:   retry.Policy{MaxRetries: 2, BaseDelay: time.Second, NonRetryable: transcribeNonRetryable},
		language: "auto",
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Process runs one audio file through the pipeline and always returns a
// terminal Result. The file is removed before returning, on every path.
func (p *Processor) Process(ctx context.Context, path string) *Result {
	ctx, span := observe.StartSpan(ctx, "pipeline.process")
	defer span.End()

	log := observe.Logger(ctx)
	start := time.Now()

	p.metrics.ActiveJobs.Add(ctx, 1)
	defer p.metrics.ActiveJobs.Add(ctx, -1)
	defer p.store.Remove(path)

	res := &Result{}
	defer func() {
		res.Duration = time.Since(start)
		p.metrics.PipelineDuration.Record(ctx, res.Duration.Seconds())
	}()

	if err := p.store.Validate(path); err != nil {
		log.Warn("audio file rejected", "path", path, "error", err)
		res.Err = err.Error()
		return res
	}

	tr, retries, err := p.transcribe(ctx, path)
	res.TranscribeRetries = retries
	if err != nil {
		log.Error("transcription failed", "path", path, "retries", retries, "error", err)
		res.Err = err.Error()
		return res
	}
	res.Transcription = tr

	if strings.TrimSpace(tr.Text) == "" {
		log.Info("no speech in audio file", "path", path)
		res.Err = ErrNoSpeech.Error()
		return res
	}
	res.Success = true

	res.Grammar = p.analyze(ctx, tr.Text)
	return res
}

// transcribe runs the speech-to-text stage under the retry policy.
func (p *Processor) transcribe(ctx context.Context, path string) (*transcribe.Result, int, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.transcribe")
	defer span.End()

	req := transcribe.Request{
		FilePath:       path,
		Language:       p.language,
		Diarize:        p.diarize,
		WordTimestamps: p.diarize,
	}

	start := time.Now()
	out := retry.Do(ctx, p.policy, func(ctx context.Context, attempt int) (*transcribe.Result, error) {
		result, err := p.stt.Transcribe(ctx, req)
		status := "ok"
		if err != nil {
			status = "error"
			p.metrics.RecordProviderError(ctx, "stt", "transcribe")
		}
		p.metrics.RecordProviderRequest(ctx, "stt", "transcribe", status)
		return result, err
	})
	p.metrics.TranscribeDuration.Record(ctx, time.Since(start).Seconds())
	p.metrics.RecordRetries(ctx, "transcribe", out.Attempts)

	if out.State != retry.StateSuccess {
		return nil, out.Attempts, out.Err
	}
	return out.Value, out.Attempts, nil
}

// analyze runs the grammar stage. A failed analysis is still returned so the
// caller can show the raw transcription; the pipeline outcome is unaffected.
func (p *Processor) analyze(ctx context.Context, text string) *grammar.Analysis {
	ctx, span := observe.StartSpan(ctx, "pipeline.grammar")
	defer span.End()

	start := time.Now()
	a := p.checker.Check(ctx, text)
	p.metrics.GrammarDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("method", string(a.MethodUsed))))
	p.metrics.RecordRetries(ctx, "grammar", a.RetryAttempts)
	if a.MethodUsed == grammar.MethodLegacy {
		outcome := "recovered"
		if a.FallbackUsed {
			outcome = "echoed"
		}
		p.metrics.RecordParseFallback(ctx, outcome)
	}

	if !a.Success {
		observe.Logger(ctx).Warn("grammar analysis failed, keeping raw transcription",
			"retries", a.RetryAttempts, "error", a.Err)
	}
	return a
}

// Health verifies both pipeline stages are reachable.
func (p *Processor) Health(ctx context.Context) error {
	if err := p.stt.Health(ctx); err != nil {
		return fmt.Errorf("transcription: %w", err)
	}
	if err := p.checker.Health(ctx); err != nil {
		return fmt.Errorf("grammar: %w", err)
	}
	return nil
}

// Status reports per-stage health for diagnostics: "healthy" or
// "degraded: <reason>" keyed by stage name.
func (p *Processor) Status(ctx context.Context) map[string]string {
	status := make(map[string]string, 2)
	if err := p.stt.Health(ctx); err != nil {
		status["transcribe"] = "degraded: " + err.Error()
	} else {
		status["transcribe"] = "healthy"
	}
	if err := p.checker.Health(ctx); err != nil {
		status["grammar"] = "degraded: " + err.Error()
	} else {
		status["grammar"] = "healthy"
	}
	return status
}
