package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/talkscribe/talkscribe/internal/discord"
	"github.com/talkscribe/talkscribe/internal/storage"
)

const (
	historyTimeout      = 10 * time.Second
	defaultHistoryLimit = 5
	maxHistoryLimit     = 20
)

// HistoryCommands handles the /history slash command, showing the invoking
// user's recent submissions from the audit store.
type HistoryCommands struct {
	store storage.Store
}

// NewHistoryCommands creates a HistoryCommands handler.
func NewHistoryCommands(store storage.Store) *HistoryCommands {
	return &HistoryCommands{store: store}
}

// Register registers /history with the router.
func (hc *HistoryCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("history", hc.Definition(), wrap(hc.handleHistory))
}

// Definition returns the /history ApplicationCommand for registration.
func (hc *HistoryCommands) Definition() *discordgo.ApplicationCommand {
	minLimit := float64(1)
	return &discordgo.ApplicationCommand{
		Name:        "history",
		Description: "Show your recent audio submissions",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "limit",
				Description: "How many submissions to show (default 5, max 20)",
				Type:        discordgo.ApplicationCommandOptionInteger,
				MinValue:    &minLimit,
				MaxValue:    maxHistoryLimit,
			},
		},
	}
}

func (hc *HistoryCommands) handleHistory(rs discord.Responder, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if user == nil {
		discord.RespondEphemeral(rs, i, "Could not identify you from this interaction.")
		return
	}

	limit := int(subcommandIntOption(i, "limit", defaultHistoryLimit))
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()

	subs, err := hc.store.RecentSubmissions(ctx, user.ID, limit)
	if err != nil {
		discord.RespondError(rs, i, err)
		return
	}
	if len(subs) == 0 {
		discord.RespondEphemeral(rs, i, "📊 No submissions yet. Send an audio file to get started!")
		return
	}

	var b strings.Builder
	if u, err := hc.store.GetUser(ctx, user.ID); err == nil && u != nil {
		fmt.Fprintf(&b, "🎵 **Total submissions:** %d\n\n", u.Submissions)
	}
	for _, sub := range subs {
		b.WriteString(formatHistoryEntry(sub))
	}

	discord.RespondEmbed(rs, i, &discordgo.MessageEmbed{
		Title:       "Your Recent Submissions",
		Description: b.String(),
		Color:       0x5865F2,
	})
}

// formatHistoryEntry renders one submission as an embed line.
func formatHistoryEntry(sub storage.Submission) string {
	text := sub.CorrectedText
	if text == "" {
		text = sub.TranscriptText
	}
	if len(text) > 120 {
		text = text[:120] + "…"
	}

	line := fmt.Sprintf("• <t:%d:R>", sub.CreatedAt.Unix())
	if sub.Language != "" {
		line += fmt.Sprintf(" [%s]", sub.Language)
	}
	line += " " + text
	if !sub.GrammarSuccess {
		line += " _(grammar check failed)_"
	}
	return line + "\n"
}
