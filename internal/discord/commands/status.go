package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/talkscribe/talkscribe/internal/discord"
)

// statusTimeout bounds the provider probes behind /status.
const statusTimeout = 10 * time.Second

// Diagnostics reports per-stage pipeline health, satisfied by
// *pipeline.Processor.
type Diagnostics interface {
	Status(ctx context.Context) map[string]string
}

// StatusCommands handles the /status slash command.
type StatusCommands struct {
	diag Diagnostics
	// ping probes the submission store; nil when history is disabled.
	ping func(ctx context.Context) error
}

// NewStatusCommands creates a StatusCommands handler. ping may be nil.
func NewStatusCommands(diag Diagnostics, ping func(ctx context.Context) error) *StatusCommands {
	return &StatusCommands{diag: diag, ping: ping}
}

// Register registers /status with the router.
func (sc *StatusCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("status", sc.Definition(), wrap(sc.handleStatus))
}

// Definition returns the /status ApplicationCommand for registration.
func (sc *StatusCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "status",
		Description: "Check bot and provider health",
	}
}

func (sc *StatusCommands) handleStatus(rs discord.Responder, i *discordgo.InteractionCreate) {
	discord.DeferReply(rs, i)

	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	stages := sc.diag.Status(ctx)

	var b strings.Builder
	b.WriteString("🤖 **Bot:** ✅ Running\n")
	fmt.Fprintf(&b, "🎤 **Transcription:** %s\n", statusIcon(stages["transcribe"]))
	fmt.Fprintf(&b, "📝 **Grammar:** %s\n", statusIcon(stages["grammar"]))

	if sc.ping != nil {
		if err := sc.ping(ctx); err != nil {
			fmt.Fprintf(&b, "💾 **Storage:** ❌ %s\n", err)
		} else {
			b.WriteString("💾 **Storage:** ✅ Healthy\n")
		}
	} else {
		b.WriteString("💾 **Storage:** in-memory\n")
	}

	discord.FollowUpEmbed(rs, i, &discordgo.MessageEmbed{
		Title:       "Bot Status",
		Description: b.String(),
		Color:       0x5865F2,
	})
}

// statusIcon renders one stage status line.
func statusIcon(s string) string {
	if s == "healthy" {
		return "✅ Healthy"
	}
	return "❌ " + strings.TrimPrefix(s, "degraded: ")
}
