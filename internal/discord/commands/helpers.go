package commands

import (
	"github.com/bwmarrin/discordgo"

	"github.com/talkscribe/talkscribe/internal/discord"
)

// wrap adapts a Responder-based handler to the router's HandlerFunc.
func wrap(h func(rs discord.Responder, i *discordgo.InteractionCreate)) discord.HandlerFunc {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		h(s, i)
	}
}

// interactionUser returns the invoking user for guild or DM interactions.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// subcommandOptions returns the option list of the invoked subcommand, or the
// top-level options for a plain command.
func subcommandOptions(i *discordgo.InteractionCreate) []*discordgo.ApplicationCommandInteractionDataOption {
	data := i.ApplicationCommandData()
	if len(data.Options) > 0 && data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return data.Options[0].Options
	}
	return data.Options
}

// subcommandStringOption extracts a string option value from an interaction.
func subcommandStringOption(i *discordgo.InteractionCreate, name string) string {
	for _, opt := range subcommandOptions(i) {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionString {
			return opt.StringValue()
		}
	}
	return ""
}

// subcommandUserID extracts a user option's ID from an interaction.
func subcommandUserID(i *discordgo.InteractionCreate, name string) string {
	for _, opt := range subcommandOptions(i) {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionUser {
			return opt.UserValue(nil).ID
		}
	}
	return ""
}

// subcommandIntOption extracts an integer option value, or def when absent.
func subcommandIntOption(i *discordgo.InteractionCreate, name string, def int64) int64 {
	for _, opt := range subcommandOptions(i) {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionInteger {
			return opt.IntValue()
		}
	}
	return def
}
