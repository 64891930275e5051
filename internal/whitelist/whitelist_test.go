package whitelist

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "whitelist.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeList(t, `
enabled: true
user_ids: ["100", "200"]
usernames: ["Alice"]
admin_ids: ["900"]
`)

	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !l.Enabled() {
		t.Error("Enabled()=false")
	}
	if !l.Allowed("100", "") {
		t.Error("listed user ID rejected")
	}
	if !l.Allowed("", "alice") {
		t.Error("listed username rejected (case-insensitive)")
	}
	if !l.Allowed("900", "") {
		t.Error("admin rejected")
	}
	if l.Allowed("300", "bob") {
		t.Error("unlisted user allowed")
	}
	if !l.IsAdmin("900") || l.IsAdmin("100") {
		t.Error("IsAdmin wrong")
	}
}

func TestLoad_MissingFileStartsOpen(t *testing.T) {
	t.Parallel()

	l, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if l.Enabled() {
		t.Error("missing file should leave enforcement off")
	}
	if !l.Allowed("anyone", "whoever") {
		t.Error("everyone should be allowed when enforcement is off")
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := writeList(t, "enabled: true\nbogus_key: 1\n")
	if _, err := Load(path); err == nil {
		t.Error("Load should reject unknown fields")
	}
}

func TestMutationsPersist(t *testing.T) {
	t.Parallel()

	path := writeList(t, "enabled: true\n")
	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := l.AddUser("42"); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if err := l.AddUsername("Carol"); err != nil {
		t.Fatalf("AddUsername: %v", err)
	}
	if err := l.AddAdmin("7"); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}

	// A fresh load from disk must see everything.
	l2, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !l2.Allowed("42", "") || !l2.Allowed("", "carol") || !l2.IsAdmin("7") {
		t.Error("persisted entries missing after reload")
	}
}

func TestAddUser_Idempotent(t *testing.T) {
	t.Parallel()

	path := writeList(t, "enabled: true\n")
	l, _ := Load(path)

	l.AddUser("42")
	l.AddUser("42")

	ids, _, _ := l.Snapshot()
	if len(ids) != 1 {
		t.Errorf("user_ids=%v, want single entry", ids)
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()

	path := writeList(t, `
enabled: true
user_ids: ["1"]
usernames: ["dave"]
admin_ids: ["2"]
`)
	l, _ := Load(path)

	if err := l.RemoveUser("1"); err != nil {
		t.Errorf("RemoveUser: %v", err)
	}
	if err := l.RemoveUsername("DAVE"); err != nil {
		t.Errorf("RemoveUsername: %v", err)
	}
	if err := l.RemoveAdmin("2"); err != nil {
		t.Errorf("RemoveAdmin: %v", err)
	}
	if err := l.RemoveUser("1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second RemoveUser err=%v, want ErrNotFound", err)
	}

	if l.Allowed("1", "dave") {
		t.Error("removed entries still allowed")
	}
}

func TestSetEnabled(t *testing.T) {
	t.Parallel()

	path := writeList(t, "enabled: true\nuser_ids: [\"1\"]\n")
	l, _ := Load(path)

	if l.Allowed("999", "") {
		t.Fatal("unlisted user allowed while enforced")
	}
	if err := l.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if !l.Allowed("999", "") {
		t.Error("enforcement off should allow everyone")
	}
}

func TestReload_PicksUpExternalEdit(t *testing.T) {
	t.Parallel()

	path := writeList(t, "enabled: true\nuser_ids: [\"1\"]\n")
	l, _ := Load(path)

	if err := os.WriteFile(path, []byte("enabled: true\nuser_ids: [\"2\"]\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := l.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if l.Allowed("1", "") || !l.Allowed("2", "") {
		t.Error("reload did not replace entries")
	}
}
