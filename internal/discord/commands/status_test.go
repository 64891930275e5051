package commands

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/talkscribe/talkscribe/internal/discord/mock"
)

type stubDiagnostics struct {
	stages map[string]string
}

func (d *stubDiagnostics) Status(_ context.Context) map[string]string {
	return d.stages
}

func statusInteraction() *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionApplicationCommand,
			Member: &discordgo.Member{
				User: &discordgo.User{ID: "user-1", Username: "tester"},
			},
			Data: discordgo.ApplicationCommandInteractionData{Name: "status"},
		},
	}
}

func TestStatus_AllHealthy(t *testing.T) {
	t.Parallel()

	diag := &stubDiagnostics{stages: map[string]string{
		"transcribe": "healthy",
		"grammar":    "healthy",
	}}
	sc := NewStatusCommands(diag, func(_ context.Context) error { return nil })
	rs := &mock.InteractionResponder{}

	sc.handleStatus(rs, statusInteraction())

	// First response defers, result arrives as a follow-up embed.
	if len(rs.Responses) == 0 || rs.Responses[0].Type != discordgo.InteractionResponseDeferredChannelMessageWithSource {
		t.Fatal("expected a deferred first response")
	}
	fu := rs.LastFollowUp()
	if fu == nil || len(fu.Embeds) == 0 {
		t.Fatal("expected a follow-up embed")
	}
	desc := fu.Embeds[0].Description
	if strings.Count(desc, "✅") < 3 {
		t.Errorf("expected healthy markers for all components, got %q", desc)
	}
}

func TestStatus_DegradedStage(t *testing.T) {
	t.Parallel()

	diag := &stubDiagnostics{stages: map[string]string{
		"transcribe": "degraded: HTTP 401",
		"grammar":    "healthy",
	}}
	sc := NewStatusCommands(diag, nil)
	rs := &mock.InteractionResponder{}

	sc.handleStatus(rs, statusInteraction())

	fu := rs.LastFollowUp()
	if fu == nil || len(fu.Embeds) == 0 {
		t.Fatal("expected a follow-up embed")
	}
	desc := fu.Embeds[0].Description
	if !strings.Contains(desc, "HTTP 401") {
		t.Errorf("expected degraded reason in output, got %q", desc)
	}
	if !strings.Contains(desc, "in-memory") {
		t.Errorf("expected in-memory storage note when ping is nil, got %q", desc)
	}
}

func TestStatus_StorageDown(t *testing.T) {
	t.Parallel()

	diag := &stubDiagnostics{stages: map[string]string{
		"transcribe": "healthy",
		"grammar":    "healthy",
	}}
	sc := NewStatusCommands(diag, func(_ context.Context) error {
		return errors.New("connection refused")
	})
	rs := &mock.InteractionResponder{}

	sc.handleStatus(rs, statusInteraction())

	fu := rs.LastFollowUp()
	if fu == nil || len(fu.Embeds) == 0 {
		t.Fatal("expected a follow-up embed")
	}
	if !strings.Contains(fu.Embeds[0].Description, "connection refused") {
		t.Errorf("expected storage error in output, got %q", fu.Embeds[0].Description)
	}
}
