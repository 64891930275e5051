package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/talkscribe/talkscribe/internal/discord/mock"
	"github.com/talkscribe/talkscribe/internal/whitelist"
)

const testWhitelistYAML = `
enabled: true
user_ids:
  - "100"
usernames:
  - alice
admin_ids:
  - "admin-1"
`

func newTestList(t *testing.T) *whitelist.List {
	t.Helper()
	path := filepath.Join(t.TempDir(), "whitelist.yaml")
	if err := os.WriteFile(path, []byte(testWhitelistYAML), 0o644); err != nil {
		t.Fatalf("write whitelist: %v", err)
	}
	list, err := whitelist.Load(path)
	if err != nil {
		t.Fatalf("load whitelist: %v", err)
	}
	return list
}

// subInteraction builds a /whitelist subcommand interaction from the given user.
func subInteraction(userID, sub string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionApplicationCommand,
			Member: &discordgo.Member{
				User: &discordgo.User{ID: userID, Username: "tester"},
			},
			Data: discordgo.ApplicationCommandInteractionData{
				Name: "whitelist",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: sub, Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts},
				},
			},
		},
	}
}

func userOption(id string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  "user",
		Type:  discordgo.ApplicationCommandOptionUser,
		Value: id,
	}
}

func nameOption(name string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  "name",
		Type:  discordgo.ApplicationCommandOptionString,
		Value: name,
	}
}

func responseContent(t *testing.T, rs *mock.InteractionResponder) string {
	t.Helper()
	resp := rs.LastResponse()
	if resp == nil || resp.Data == nil {
		t.Fatal("no response recorded")
	}
	if resp.Data.Content != "" {
		return resp.Data.Content
	}
	if len(resp.Data.Embeds) > 0 {
		return resp.Data.Embeds[0].Description
	}
	return ""
}

func TestWhitelistDefinition(t *testing.T) {
	t.Parallel()

	wc := NewWhitelistCommands(newTestList(t))
	def := wc.Definition()

	if def.Name != "whitelist" {
		t.Errorf("Name = %q, want %q", def.Name, "whitelist")
	}

	want := []string{"list", "enable", "disable", "add", "remove", "addname", "removename", "addadmin", "removeadmin"}
	if len(def.Options) != len(want) {
		t.Fatalf("Options count = %d, want %d", len(def.Options), len(want))
	}
	for idx, name := range want {
		if def.Options[idx].Name != name {
			t.Errorf("subcommand[%d] = %q, want %q", idx, def.Options[idx].Name, name)
		}
	}
}

func TestWhitelist_NonAdminRejected(t *testing.T) {
	t.Parallel()

	list := newTestList(t)
	wc := NewWhitelistCommands(list)
	rs := &mock.InteractionResponder{}

	wc.handleAddUser(rs, subInteraction("user-2", "add", userOption("555")))

	got := responseContent(t, rs)
	if !strings.Contains(got, "admin rights") {
		t.Errorf("response = %q, want admin rejection", got)
	}
	if list.Allowed("555", "") {
		t.Error("non-admin mutation must not take effect")
	}
}

func TestWhitelist_AddUser(t *testing.T) {
	t.Parallel()

	list := newTestList(t)
	wc := NewWhitelistCommands(list)
	rs := &mock.InteractionResponder{}

	wc.handleAddUser(rs, subInteraction("admin-1", "add", userOption("555")))

	if !list.Allowed("555", "") {
		t.Error("user 555 should be whitelisted after add")
	}
	if got := responseContent(t, rs); !strings.Contains(got, "555") {
		t.Errorf("response = %q, want mention of added user", got)
	}
}

func TestWhitelist_RemoveUser_NotFound(t *testing.T) {
	t.Parallel()

	wc := NewWhitelistCommands(newTestList(t))
	rs := &mock.InteractionResponder{}

	wc.handleRemoveUser(rs, subInteraction("admin-1", "remove", userOption("999")))

	if got := responseContent(t, rs); !strings.Contains(got, "not on the whitelist") {
		t.Errorf("response = %q, want not-found notice", got)
	}
}

func TestWhitelist_AddName(t *testing.T) {
	t.Parallel()

	list := newTestList(t)
	wc := NewWhitelistCommands(list)
	rs := &mock.InteractionResponder{}

	wc.handleAddName(rs, subInteraction("admin-1", "addname", nameOption("Bob")))

	if !list.Allowed("someone", "bob") {
		t.Error("username bob should be whitelisted case-insensitively")
	}
}

func TestWhitelist_EnableDisable(t *testing.T) {
	t.Parallel()

	list := newTestList(t)
	wc := NewWhitelistCommands(list)
	rs := &mock.InteractionResponder{}

	wc.handleDisable(rs, subInteraction("admin-1", "disable"))
	if list.Enabled() {
		t.Error("whitelist should be disabled")
	}
	if !list.Allowed("anyone", "whoever") {
		t.Error("disabled whitelist should allow everyone")
	}

	wc.handleEnable(rs, subInteraction("admin-1", "enable"))
	if !list.Enabled() {
		t.Error("whitelist should be enabled")
	}
	if list.Allowed("anyone", "whoever") {
		t.Error("enabled whitelist should reject unknown users")
	}
}

func TestWhitelist_List(t *testing.T) {
	t.Parallel()

	wc := NewWhitelistCommands(newTestList(t))
	rs := &mock.InteractionResponder{}

	wc.handleList(rs, subInteraction("admin-1", "list"))

	got := responseContent(t, rs)
	for _, want := range []string{"100", "alice", "admin-1", "enabled"} {
		if !strings.Contains(got, want) {
			t.Errorf("list output missing %q: %q", want, got)
		}
	}
}

func TestWhitelist_AdminMutations(t *testing.T) {
	t.Parallel()

	list := newTestList(t)
	wc := NewWhitelistCommands(list)
	rs := &mock.InteractionResponder{}

	wc.handleAddAdmin(rs, subInteraction("admin-1", "addadmin", userOption("admin-2")))
	if !list.IsAdmin("admin-2") {
		t.Error("admin-2 should be an admin after addadmin")
	}

	wc.handleRemoveAdmin(rs, subInteraction("admin-1", "removeadmin", userOption("admin-2")))
	if list.IsAdmin("admin-2") {
		t.Error("admin-2 should no longer be an admin")
	}
}
