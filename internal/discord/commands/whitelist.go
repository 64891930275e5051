// Package commands implements the TalkScribe slash commands: whitelist
// administration, service status, and submission history.
package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/talkscribe/talkscribe/internal/discord"
	"github.com/talkscribe/talkscribe/internal/whitelist"
)

// WhitelistCommands handles the /whitelist slash command group.
type WhitelistCommands struct {
	list *whitelist.List
}

// NewWhitelistCommands creates a WhitelistCommands handler.
func NewWhitelistCommands(list *whitelist.List) *WhitelistCommands {
	return &WhitelistCommands{list: list}
}

// Register registers all /whitelist subcommands with the router.
func (wc *WhitelistCommands) Register(router *discord.CommandRouter) {
	def := wc.Definition()
	router.RegisterCommand("whitelist", def, func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		discord.RespondEphemeral(s, i, "Please use a subcommand: `/whitelist list`, `/whitelist add`, `/whitelist remove`, `/whitelist enable`, `/whitelist disable`.")
	})
	router.RegisterHandler("whitelist/list", wrap(wc.handleList))
	router.RegisterHandler("whitelist/enable", wrap(wc.handleEnable))
	router.RegisterHandler("whitelist/disable", wrap(wc.handleDisable))
	router.RegisterHandler("whitelist/add", wrap(wc.handleAddUser))
	router.RegisterHandler("whitelist/remove", wrap(wc.handleRemoveUser))
	router.RegisterHandler("whitelist/addname", wrap(wc.handleAddName))
	router.RegisterHandler("whitelist/removename", wrap(wc.handleRemoveName))
	router.RegisterHandler("whitelist/addadmin", wrap(wc.handleAddAdmin))
	router.RegisterHandler("whitelist/removeadmin", wrap(wc.handleRemoveAdmin))
}

// Definition returns the /whitelist ApplicationCommand for registration.
func (wc *WhitelistCommands) Definition() *discordgo.ApplicationCommand {
	userOpt := func(desc string) []*discordgo.ApplicationCommandOption {
		return []*discordgo.ApplicationCommandOption{
			{
				Name:        "user",
				Description: desc,
				Type:        discordgo.ApplicationCommandOptionUser,
				Required:    true,
			},
		}
	}
	nameOpt := []*discordgo.ApplicationCommandOption{
		{
			Name:        "name",
			Description: "Discord username (case-insensitive)",
			Type:        discordgo.ApplicationCommandOptionString,
			Required:    true,
		},
	}

	return &discordgo.ApplicationCommand{
		Name:        "whitelist",
		Description: "Manage who may submit audio",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "list",
				Description: "Show the current whitelist",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "enable",
				Description: "Enable whitelist enforcement",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "disable",
				Description: "Disable whitelist enforcement (everyone may submit)",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "add",
				Description: "Allow a user to submit audio",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options:     userOpt("User to allow"),
			},
			{
				Name:        "remove",
				Description: "Remove a user from the whitelist",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options:     userOpt("User to remove"),
			},
			{
				Name:        "addname",
				Description: "Allow a username to submit audio",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options:     nameOpt,
			},
			{
				Name:        "removename",
				Description: "Remove a username from the whitelist",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options:     nameOpt,
			},
			{
				Name:        "addadmin",
				Description: "Grant whitelist admin rights",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options:     userOpt("User to promote"),
			},
			{
				Name:        "removeadmin",
				Description: "Revoke whitelist admin rights",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options:     userOpt("User to demote"),
			},
		},
	}
}

// requireAdmin gates a mutation behind whitelist admin rights.
func (wc *WhitelistCommands) requireAdmin(rs discord.Responder, i *discordgo.InteractionCreate) bool {
	user := interactionUser(i)
	if user == nil || !wc.list.IsAdmin(user.ID) {
		discord.RespondEphemeral(rs, i, "You need whitelist admin rights for this command.")
		return false
	}
	return true
}

func (wc *WhitelistCommands) handleList(rs discord.Responder, i *discordgo.InteractionCreate) {
	if !wc.requireAdmin(rs, i) {
		return
	}

	userIDs, usernames, adminIDs := wc.list.Snapshot()

	state := "disabled (everyone may submit)"
	if wc.list.Enabled() {
		state = "enabled"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Enforcement: **%s**\n\n", state)
	b.WriteString(section("User IDs", userIDs))
	b.WriteString(section("Usernames", usernames))
	b.WriteString(section("Admins", adminIDs))

	discord.RespondEmbed(rs, i, &discordgo.MessageEmbed{
		Title:       "Whitelist",
		Description: b.String(),
		Color:       0x5865F2,
	})
}

func (wc *WhitelistCommands) handleEnable(rs discord.Responder, i *discordgo.InteractionCreate) {
	if !wc.requireAdmin(rs, i) {
		return
	}
	if err := wc.list.SetEnabled(true); err != nil {
		discord.RespondError(rs, i, err)
		return
	}
	discord.RespondEphemeral(rs, i, "Whitelist enforcement **enabled**.")
}

func (wc *WhitelistCommands) handleDisable(rs discord.Responder, i *discordgo.InteractionCreate) {
	if !wc.requireAdmin(rs, i) {
		return
	}
	if err := wc.list.SetEnabled(false); err != nil {
		discord.RespondError(rs, i, err)
		return
	}
	discord.RespondEphemeral(rs, i, "Whitelist enforcement **disabled**. Everyone may submit audio.")
}

func (wc *WhitelistCommands) handleAddUser(rs discord.Responder, i *discordgo.InteractionCreate) {
	if !wc.requireAdmin(rs, i) {
		return
	}
	id := subcommandUserID(i, "user")
	if id == "" {
		discord.RespondEphemeral(rs, i, "Missing user option.")
		return
	}
	if err := wc.list.AddUser(id); err != nil {
		discord.RespondError(rs, i, err)
		return
	}
	discord.RespondEphemeral(rs, i, fmt.Sprintf("Added <@%s> to the whitelist.", id))
}

func (wc *WhitelistCommands) handleRemoveUser(rs discord.Responder, i *discordgo.InteractionCreate) {
	if !wc.requireAdmin(rs, i) {
		return
	}
	id := subcommandUserID(i, "user")
	if err := wc.list.RemoveUser(id); err != nil {
		if errors.Is(err, whitelist.ErrNotFound) {
			discord.RespondEphemeral(rs, i, fmt.Sprintf("<@%s> is not on the whitelist.", id))
			return
		}
		discord.RespondError(rs, i, err)
		return
	}
	discord.RespondEphemeral(rs, i, fmt.Sprintf("Removed <@%s> from the whitelist.", id))
}

func (wc *WhitelistCommands) handleAddName(rs discord.Responder, i *discordgo.InteractionCreate) {
	if !wc.requireAdmin(rs, i) {
		return
	}
	name := subcommandStringOption(i, "name")
	if name == "" {
		discord.RespondEphemeral(rs, i, "Missing name option.")
		return
	}
	if err := wc.list.AddUsername(name); err != nil {
		discord.RespondError(rs, i, err)
		return
	}
	discord.RespondEphemeral(rs, i, fmt.Sprintf("Added username **%s** to the whitelist.", name))
}

func (wc *WhitelistCommands) handleRemoveName(rs discord.Responder, i *discordgo.InteractionCreate) {
	if !wc.requireAdmin(rs, i) {
		return
	}
	name := subcommandStringOption(i, "name")
	if err := wc.list.RemoveUsername(name); err != nil {
		if errors.Is(err, whitelist.ErrNotFound) {
			discord.RespondEphemeral(rs, i, fmt.Sprintf("Username **%s** is not on the whitelist.", name))
			return
		}
		discord.RespondError(rs, i, err)
		return
	}
	discord.RespondEphemeral(rs, i, fmt.Sprintf("Removed username **%s** from the whitelist.", name))
}

func (wc *WhitelistCommands) handleAddAdmin(rs discord.Responder, i *discordgo.InteractionCreate) {
	if !wc.requireAdmin(rs, i) {
		return
	}
	id := subcommandUserID(i, "user")
	if id == "" {
		discord.RespondEphemeral(rs, i, "Missing user option.")
		return
	}
	if err := wc.list.AddAdmin(id); err != nil {
		discord.RespondError(rs, i, err)
		return
	}
	discord.RespondEphemeral(rs, i, fmt.Sprintf("Granted whitelist admin rights to <@%s>.", id))
}

func (wc *WhitelistCommands) handleRemoveAdmin(rs discord.Responder, i *discordgo.InteractionCreate) {
	if !wc.requireAdmin(rs, i) {
		return
	}
	id := subcommandUserID(i, "user")
	if err := wc.list.RemoveAdmin(id); err != nil {
		if errors.Is(err, whitelist.ErrNotFound) {
			discord.RespondEphemeral(rs, i, fmt.Sprintf("<@%s> is not an admin.", id))
			return
		}
		discord.RespondError(rs, i, err)
		return
	}
	discord.RespondEphemeral(rs, i, fmt.Sprintf("Revoked whitelist admin rights from <@%s>.", id))
}

// section formats one whitelist category for the list embed.
func section(title string, entries []string) string {
	if len(entries) == 0 {
		return fmt.Sprintf("**%s:** none\n", title)
	}
	return fmt.Sprintf("**%s:** %s\n", title, strings.Join(entries, ", "))
}
