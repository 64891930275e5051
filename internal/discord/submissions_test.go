package discord

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/talkscribe/talkscribe/internal/discord/mock"
	"github.com/talkscribe/talkscribe/internal/files"
	"github.com/talkscribe/talkscribe/internal/grammar"
	"github.com/talkscribe/talkscribe/internal/pipeline"
	"github.com/talkscribe/talkscribe/internal/storage"
	"github.com/talkscribe/talkscribe/pkg/provider/transcribe"
)

type stubPipeline struct {
	res   *pipeline.Result
	paths []string
}

func (p *stubPipeline) Process(_ context.Context, path string) *pipeline.Result {
	p.paths = append(p.paths, path)
	// The real processor removes the file; the stub mirrors that so tests
	// can assert cleanup.
	os.Remove(path)
	return p.res
}

type stubAccess struct{ allowed bool }

func (a stubAccess) Allowed(_, _ string) bool { return a.allowed }

func okResult() *pipeline.Result {
	return &pipeline.Result{
		Success: true,
		Transcription: &transcribe.Result{
			Text:     "i has a apple",
			Language: "en",
		},
		Grammar: &grammar.Analysis{
			Success:         true,
			OriginalText:    "i has a apple",
			CorrectedText:   "I have an apple.",
			GrammarIssues:   []string{"has: subject-verb agreement"},
			SpeakingTips:    []string{"Pause between sentences"},
			ConfidenceScore: 0.95,
			MethodUsed:      grammar.MethodStructured,
		},
		Duration: 1200 * time.Millisecond,
	}
}

func audioMessage(url string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ChannelID: "chan-1",
			GuildID:   "guild-1",
			Author:    &discordgo.User{ID: "user-1", Username: "tester"},
			Attachments: []*discordgo.MessageAttachment{
				{Filename: "clip.mp3", URL: url, Size: 11},
			},
		},
	}
}

func newTestSubmissions(t *testing.T, pipe AudioPipeline, allowed bool, opts ...SubmissionOption) *Submissions {
	t.Helper()
	store, err := files.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return NewSubmissions(pipe, store, stubAccess{allowed: allowed}, opts...)
}

func audioServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("audio-bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHandleMessage_IgnoresBots(t *testing.T) {
	t.Parallel()

	pipe := &stubPipeline{res: okResult()}
	h := newTestSubmissions(t, pipe, true)
	sender := &mock.MessageSender{}

	m := audioMessage("http://unused")
	m.Author.Bot = true
	h.HandleMessage(sender, m)

	if len(sender.Sent) != 0 {
		t.Errorf("expected no messages for bot authors, got %d", len(sender.Sent))
	}
	if len(pipe.paths) != 0 {
		t.Error("pipeline should not run for bot authors")
	}
}

func TestHandleMessage_IgnoresNonAudio(t *testing.T) {
	t.Parallel()

	pipe := &stubPipeline{res: okResult()}
	h := newTestSubmissions(t, pipe, true)
	sender := &mock.MessageSender{}

	m := audioMessage("http://unused")
	m.Attachments[0].Filename = "notes.txt"
	h.HandleMessage(sender, m)

	if len(sender.Sent) != 0 {
		t.Errorf("expected silence for non-audio attachments, got %d messages", len(sender.Sent))
	}
}

func TestHandleMessage_RejectsNonWhitelisted(t *testing.T) {
	t.Parallel()

	pipe := &stubPipeline{res: okResult()}
	h := newTestSubmissions(t, pipe, false)
	sender := &mock.MessageSender{}

	h.HandleMessage(sender, audioMessage("http://unused"))

	if len(sender.Sent) != 1 {
		t.Fatalf("expected 1 rejection message, got %d", len(sender.Sent))
	}
	if !strings.Contains(sender.Sent[0].Content, "not authorized") {
		t.Errorf("rejection = %q", sender.Sent[0].Content)
	}
	if len(pipe.paths) != 0 {
		t.Error("pipeline should not run for rejected users")
	}
}

func TestHandleMessage_ProcessesAudio(t *testing.T) {
	t.Parallel()

	srv := audioServer(t)
	pipe := &stubPipeline{res: okResult()}
	h := newTestSubmissions(t, pipe, true)
	sender := &mock.MessageSender{}

	h.HandleMessage(sender, audioMessage(srv.URL))

	if len(pipe.paths) != 1 {
		t.Fatalf("expected 1 pipeline run, got %d", len(pipe.paths))
	}
	if !strings.HasSuffix(pipe.paths[0], ".mp3") {
		t.Errorf("saved path should keep the audio extension: %q", pipe.paths[0])
	}

	if len(sender.Sent) != 1 || !strings.Contains(sender.Sent[0].Content, "Processing") {
		t.Fatalf("expected an initial processing notice, got %+v", sender.Sent)
	}
	edit := sender.LastEdit()
	if edit == nil {
		t.Fatal("expected the status message to be edited with the result")
	}
	for _, want := range []string{"Transcription", "i has a apple", "I have an apple.", "subject-verb agreement", "Pause between sentences"} {
		if !strings.Contains(edit.Content, want) {
			t.Errorf("result missing %q: %q", want, edit.Content)
		}
	}
}

func TestHandleMessage_DownloadFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	pipe := &stubPipeline{res: okResult()}
	h := newTestSubmissions(t, pipe, true)
	sender := &mock.MessageSender{}

	h.HandleMessage(sender, audioMessage(srv.URL))

	if len(pipe.paths) != 0 {
		t.Error("pipeline should not run when download fails")
	}
	edit := sender.LastEdit()
	if edit == nil || !strings.Contains(edit.Content, "Failed to process") {
		t.Errorf("expected failure notice, got %+v", edit)
	}
}

func TestHandleMessage_PipelineFailure(t *testing.T) {
	t.Parallel()

	srv := audioServer(t)
	pipe := &stubPipeline{res: &pipeline.Result{Err: "No speech detected in audio file"}}
	h := newTestSubmissions(t, pipe, true)
	sender := &mock.MessageSender{}

	h.HandleMessage(sender, audioMessage(srv.URL))

	edit := sender.LastEdit()
	if edit == nil || !strings.Contains(edit.Content, "No speech detected in audio file") {
		t.Errorf("expected pipeline error surfaced, got %+v", edit)
	}
}

func TestHandleMessage_RecordsHistory(t *testing.T) {
	t.Parallel()

	srv := audioServer(t)
	pipe := &stubPipeline{res: okResult()}
	history := storage.NewMemStore()
	h := newTestSubmissions(t, pipe, true, WithHistory(history))
	sender := &mock.MessageSender{}

	h.HandleMessage(sender, audioMessage(srv.URL))

	subs, err := history.RecentSubmissions(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("recent submissions: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected 1 recorded submission, got %d", len(subs))
	}
	sub := subs[0]
	if sub.AudioFormat != "mp3" {
		t.Errorf("AudioFormat = %q, want %q", sub.AudioFormat, "mp3")
	}
	if sub.TranscriptText != "i has a apple" {
		t.Errorf("TranscriptText = %q", sub.TranscriptText)
	}
	if sub.CorrectedText != "I have an apple." {
		t.Errorf("CorrectedText = %q", sub.CorrectedText)
	}
	if !sub.GrammarSuccess {
		t.Error("GrammarSuccess should be true")
	}
}

func TestFormatResult_FiltersSentinels(t *testing.T) {
	t.Parallel()

	res := okResult()
	res.Grammar.GrammarIssues = []string{grammar.IssuesSentinel}
	res.Grammar.SpeakingTips = []string{grammar.TipsSentinel}

	out := formatResult(res)
	if strings.Contains(out, "Issues found") {
		t.Errorf("sentinel issues should be filtered: %q", out)
	}
	if strings.Contains(out, "Speaking tips") {
		t.Errorf("sentinel tips should be filtered: %q", out)
	}
}

func TestFormatResult_NoCorrectionNeeded(t *testing.T) {
	t.Parallel()

	res := okResult()
	res.Grammar.CorrectedText = res.Transcription.Text
	res.Grammar.GrammarIssues = nil
	res.Grammar.SpeakingTips = nil

	out := formatResult(res)
	if !strings.Contains(out, "No corrections needed") {
		t.Errorf("expected no-corrections marker: %q", out)
	}
	if strings.Contains(out, "Grammar corrected") {
		t.Errorf("unchanged text should not show a corrected block: %q", out)
	}
}
