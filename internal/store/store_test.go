package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeDoc(t *testing.T, dir, name, body string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestOpenMissingDocumentsDegrade(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Prefix() != DefaultPrefix {
		t.Fatalf("expected default prefix, got %q", s.Prefix())
	}
	if len(s.ActivePlaceholders()) != 0 {
		t.Fatalf("expected no placeholders")
	}
	if _, ok := s.Command("ban"); ok {
		t.Fatalf("expected missing command")
	}
	if lines := s.CommandLines("ban", "message"); lines != nil {
		t.Fatalf("expected no lines, got %v", lines)
	}
}

func TestOpenMalformedDocumentFails(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, SettingsFile, "{not json")
	if _, err := Open(dir); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestGlobalMessagesTakePrecedence(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, MessagesFile, `{"messages":{"greet":"global hi"},"args":{"member":"a member"}}`)
	writeDoc(t, dir, "commands/hello.json", `{
		"messages": {"greet": ["local hi"], "bye": ["local bye"]},
		"args": {"member": "local member", "reason": "why"}
	}`)

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := s.CommandLines("hello", "greet"); len(got) != 1 || got[0] != "global hi" {
		t.Fatalf("expected global lines, got %v", got)
	}
	if got := s.CommandLines("hello", "bye"); len(got) != 1 || got[0] != "local bye" {
		t.Fatalf("expected command lines, got %v", got)
	}
	if got := s.ArgDescription("hello", "member"); got != "a member" {
		t.Fatalf("expected global arg description, got %q", got)
	}
	if got := s.ArgDescription("hello", "reason"); got != "why" {
		t.Fatalf("expected command arg description, got %q", got)
	}
	if got := s.ArgDescription("hello", "number"); got != "number argument for command hello is not defined" {
		t.Fatalf("unexpected fallback description %q", got)
	}
}

func TestCommandBareMessageList(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "commands/hi.json", `{"messages":["hi"]}`)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	cmd, ok := s.Command("hi")
	if !ok {
		t.Fatalf("expected command")
	}
	if got := cmd.Messages[DefaultMessageKey]; len(got) != 1 || got[0] != "hi" {
		t.Fatalf("expected default key lines, got %v", cmd.Messages)
	}
}

func TestNumericIDsKeepPrecision(t *testing.T) {
	var r Restrictions
	if err := json.Unmarshal([]byte(`{"users_id":[123456789012345678,"42"]}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Users[0] != "123456789012345678" || r.Users[1] != "42" {
		t.Fatalf("unexpected ids %v", r.Users)
	}
}

func TestEmbedFieldsKeepOrder(t *testing.T) {
	var tmpl EmbedTemplate
	body := `{"fields":{"zeta":"1","alpha":{"value":2,"inline":true},"mid":"3"}}`
	if err := json.Unmarshal([]byte(body), &tmpl); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(tmpl.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(tmpl.Fields))
	}
	if tmpl.Fields[0].Name != "zeta" || tmpl.Fields[1].Name != "alpha" || tmpl.Fields[2].Name != "mid" {
		t.Fatalf("unexpected order %+v", tmpl.Fields)
	}
	if tmpl.Fields[1].Value != "2" || !tmpl.Fields[1].Inline {
		t.Fatalf("unexpected field %+v", tmpl.Fields[1])
	}
}

func TestWarningsAcceptList(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, WarningsFile, `[{"roles_id":[1,2]}]`)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	levels := s.WarningLevels()
	if len(levels) != 1 || len(levels[0].Roles) != 2 {
		t.Fatalf("unexpected levels %+v", levels)
	}
}

func TestSaveLevelsOverwritesWholeFile(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, LevelsFile, `{"xp_per_message":5,"level_xp":[0,10],"users":{"1":{"xp":3,"level":0}}}`)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.SetUserLevel("2", UserLevel{XP: 12, Level: 1})
	if err := s.SaveLevels(); err != nil {
		t.Fatalf("save: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got, ok := reopened.UserLevel("2"); !ok || got.XP != 12 || got.Level != 1 {
		t.Fatalf("expected saved user, got %+v", got)
	}
	if got, ok := reopened.UserLevel("1"); !ok || got.XP != 3 {
		t.Fatalf("expected existing user kept, got %+v", got)
	}
	if reopened.LevelRules().XPPerMessage != 5 {
		t.Fatalf("expected rules kept")
	}
}

func TestSaveCommandInvalidatesCache(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "commands/ping.json", `{"description":"old"}`)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	cmd, _ := s.Command("ping")
	cmd.Description = "new"
	if err := s.SaveCommand(cmd); err != nil {
		t.Fatalf("save: %v", err)
	}
	again, ok := s.Command("ping")
	if !ok || again.Description != "new" {
		t.Fatalf("expected refreshed command, got %+v", again)
	}
	if names := s.CommandNames(); len(names) != 1 || names[0] != "ping" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestChannelRouteFallsBackToChannels(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, SettingsFile, `{
		"channels": {"announce": 99},
		"channel": {"announce": {"messages": ["announce"]}}
	}`)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	route, ok := s.ChannelRoute("announce")
	if !ok || route.ChannelID != "99" {
		t.Fatalf("expected fallback channel, got %+v", route)
	}
}

func TestCheckCommandsReportsMalformedDocuments(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "commands/good.json", `{"messages": ["ok"]}`)
	writeDoc(t, dir, "commands/bad.json", `{"messages": [`)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if cmd, _ := s.Command("bad"); len(cmd.Messages) != 0 {
		t.Fatalf("expected malformed command to degrade to an empty one, got %+v", cmd)
	}
	if err := s.CheckCommands(); err == nil {
		t.Fatalf("expected decode error")
	}
}
