package discord

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/talkscribe/talkscribe/internal/files"
	"github.com/talkscribe/talkscribe/internal/grammar"
	"github.com/talkscribe/talkscribe/internal/observe"
	"github.com/talkscribe/talkscribe/internal/pipeline"
	"github.com/talkscribe/talkscribe/internal/storage"
)

// processingTimeout bounds one attachment's download + pipeline run.
const processingTimeout = 2 * time.Minute

const processingNotice = "🔄 **Processing your audio...**\n\n" +
	"⏳ This usually takes 10-30 seconds\n" +
	"📝 Transcribing speech and checking grammar..."

// AudioPipeline is the processing stage consumed by the submission handler,
// satisfied by *pipeline.Processor.
type AudioPipeline interface {
	Process(ctx context.Context, path string) *pipeline.Result
}

// Access gates who may submit audio, satisfied by *whitelist.List.
type Access interface {
	Allowed(userID, username string) bool
}

// SubmissionOption configures a Submissions handler.
type SubmissionOption func(*Submissions)

// WithHTTPClient overrides the attachment download client.
func WithHTTPClient(c *http.Client) SubmissionOption {
	return func(h *Submissions) { h.client = c }
}

// WithHistory enables submission audit recording.
func WithHistory(s storage.Store) SubmissionOption {
	return func(h *Submissions) { h.history = s }
}

// Submissions handles audio attachments posted as Discord messages: it
// downloads each audio file, runs it through the pipeline, and replies with
// the transcription and grammar correction.
type Submissions struct {
	pipe    AudioPipeline
	store   *files.Store
	allow   Access
	history storage.Store
	client  *http.Client
}

// NewSubmissions creates a handler over the given pipeline, temp file store,
// and access list.
func NewSubmissions(pipe AudioPipeline, store *files.Store, allow Access, opts ...SubmissionOption) *Submissions {
	h := &Submissions{
		pipe:   pipe,
		store:  store,
		allow:  allow,
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// HandleMessage processes a MessageCreate event. Messages from bots and
// messages without audio attachments are ignored so the bot stays quiet in
// shared channels.
func (h *Submissions) HandleMessage(s Sender, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	audio := audioAttachments(m.Attachments)
	if len(audio) == 0 {
		return
	}

	log := observe.Logger(context.Background()).With("user_id", m.Author.ID, "channel_id", m.ChannelID)

	if !h.allow.Allowed(m.Author.ID, m.Author.Username) {
		log.Info("submission rejected, user not whitelisted")
		if _, err := s.ChannelMessageSend(m.ChannelID, "🚫 You are not authorized to use this bot."); err != nil {
			log.Warn("failed to send rejection notice", "error", err)
		}
		return
	}

	for _, att := range audio {
		h.processAttachment(s, m, att)
	}
}

// processAttachment runs one attachment end to end and reports the outcome
// by editing the initial status message.
func (h *Submissions) processAttachment(s Sender, m *discordgo.MessageCreate, att *discordgo.MessageAttachment) {
	ctx, cancel := context.WithTimeout(context.Background(), processingTimeout)
	defer cancel()

	log := observe.Logger(ctx).With("user_id", m.Author.ID, "file", att.Filename)
	log.Info("processing audio submission", "size", att.Size)

	status, err := s.ChannelMessageSend(m.ChannelID, processingNotice)
	if err != nil {
		log.Warn("failed to send status message", "error", err)
	}
	_ = s.ChannelTyping(m.ChannelID)

	reply := func(content string) {
		if status != nil {
			if _, err := s.ChannelMessageEdit(m.ChannelID, status.ID, content); err == nil {
				return
			}
		}
		if _, err := s.ChannelMessageSend(m.ChannelID, content); err != nil {
			log.Warn("failed to send result", "error", err)
		}
	}

	path, err := h.download(ctx, att)
	if err != nil {
		log.Error("attachment download failed", "error", err)
		reply(formatFailure(err.Error()))
		return
	}

	res := h.pipe.Process(ctx, path)
	h.record(ctx, m, att, res)

	if !res.Success {
		reply(formatFailure(res.Err))
		return
	}
	reply(formatResult(res))
}

// download fetches the attachment into the temp file store and returns the
// local path.
func (h *Submissions) download(ctx context.Context, att *discordgo.MessageAttachment) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
	if err != nil {
		return "", fmt.Errorf("discord: build download request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("discord: download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("discord: download attachment: HTTP %d", resp.StatusCode)
	}

	return h.store.Save(resp.Body, strings.ToLower(filepath.Ext(att.Filename)))
}

// record writes the submission to the audit store. Failures are logged, never
// surfaced to the user.
func (h *Submissions) record(ctx context.Context, m *discordgo.MessageCreate, att *discordgo.MessageAttachment, res *pipeline.Result) {
	if h.history == nil {
		return
	}
	log := observe.Logger(ctx)

	if err := h.history.UpsertUser(ctx, m.Author.ID, m.Author.Username); err != nil {
		log.Warn("failed to upsert user", "error", err)
		return
	}

	sub := &storage.Submission{
		UserID:      m.Author.ID,
		GuildID:     m.GuildID,
		ChannelID:   m.ChannelID,
		AudioFormat: strings.TrimPrefix(strings.ToLower(filepath.Ext(att.Filename)), "."),
		AudioBytes:  int64(att.Size),
		DurationMS:  res.Duration.Milliseconds(),
	}
	if res.Transcription != nil {
		sub.Language = res.Transcription.Language
		sub.TranscriptText = res.Transcription.Text
	}
	if res.Grammar != nil {
		sub.CorrectedText = res.Grammar.CorrectedText
		sub.GrammarSuccess = res.Grammar.Success
		sub.MethodUsed = string(res.Grammar.MethodUsed)
		sub.RetryAttempts = res.Grammar.RetryAttempts
		sub.FallbackUsed = res.Grammar.FallbackUsed
	}

	if err := h.history.RecordSubmission(ctx, sub); err != nil {
		log.Warn("failed to record submission", "error", err)
	}
}

// audioAttachments filters a message's attachments down to supported audio
// files.
func audioAttachments(atts []*discordgo.MessageAttachment) []*discordgo.MessageAttachment {
	var out []*discordgo.MessageAttachment
	for _, a := range atts {
		if a != nil && files.AllowedExtension(strings.ToLower(filepath.Ext(a.Filename))) {
			out = append(out, a)
		}
	}
	return out
}

// formatResult renders a successful pipeline outcome as a Discord message.
// Fallback parser sentinels are filtered before display.
func formatResult(res *pipeline.Result) string {
	var b strings.Builder
	b.WriteString("✅ **Audio processed!**\n\n")

	original := res.Transcription.Text
	b.WriteString("🎤 **Transcription:**\n_")
	b.WriteString(original)
	b.WriteString("_\n\n")

	g := res.Grammar
	if g != nil && g.Success && strings.TrimSpace(g.CorrectedText) != strings.TrimSpace(original) {
		b.WriteString("📝 **Grammar corrected:**\n_")
		b.WriteString(g.CorrectedText)
		b.WriteString("_\n\n")
	} else if g != nil && g.Success {
		b.WriteString("✨ **Grammar:** Perfect! No corrections needed.\n\n")
	}

	if g != nil {
		if issues := filterSentinel(g.GrammarIssues, grammar.IssuesSentinel); len(issues) > 0 {
			b.WriteString("**Issues found:**\n")
			for _, issue := range issues {
				b.WriteString("• ")
				b.WriteString(issue)
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
		if tips := filterSentinel(g.SpeakingTips, grammar.TipsSentinel); len(tips) > 0 {
			b.WriteString("💡 **Speaking tips:**\n")
			for _, tip := range tips {
				b.WriteString("• ")
				b.WriteString(tip)
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("📊 ")
	if res.Transcription.Language != "" {
		fmt.Fprintf(&b, "Language: %s · ", res.Transcription.Language)
	}
	if g != nil && g.Success {
		fmt.Fprintf(&b, "Confidence: %.0f%% · ", g.ConfidenceScore*100)
	}
	fmt.Fprintf(&b, "Took %.1fs", res.Duration.Seconds())

	if len(res.Transcription.Speakers) > 1 {
		fmt.Fprintf(&b, " · Speakers: %d", len(res.Transcription.Speakers))
	}
	return b.String()
}

// formatFailure renders a processing failure with recovery suggestions.
func formatFailure(reason string) string {
	return "❌ **Failed to process your audio**\n\n" +
		"**Error:** " + reason + "\n\n" +
		"💡 **Suggestions:**\n" +
		"• Check that the audio is clear and not corrupted\n" +
		"• Try with a smaller file (under 25MB)\n" +
		"• Ensure the audio contains speech\n" +
		"• Try again in a few moments"
}

// filterSentinel drops placeholder entries the fallback parser inserts.
func filterSentinel(entries []string, sentinel string) []string {
	var out []string
	for _, e := range entries {
		if e != sentinel && strings.TrimSpace(e) != "" {
			out = append(out, e)
		}
	}
	return out
}
