package bot

import (
	"context"
	"testing"
	"time"

	"configbot/internal/config"
	"configbot/internal/platform/platformtest"
	"configbot/internal/store"
	"configbot/internal/store/storetest"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newBot(t *testing.T, docs map[string]string) (*Bot, *platformtest.Fake) {
	t.Helper()
	st := storetest.Open(t, docs)
	fake := platformtest.New()
	b, err := assemble(config.DefaultConfig(), zap.NewNop(), fake, Services{Store: st})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	b.now = func() time.Time { return now }
	return b, fake
}

func message(content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "msg",
		ChannelID: "chan",
		GuildID:   "guild",
		Content:   content,
		Author:    &discordgo.User{ID: "42", Username: "alice"},
		Member:    &discordgo.Member{},
	}
}

func component(customID string, sent time.Time) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:        "int",
		Type:      discordgo.InteractionMessageComponent,
		GuildID:   "guild",
		ChannelID: "chan",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "42", Username: "alice"}},
		Message:   &discordgo.Message{ID: "panel-msg", Timestamp: sent},
		Data:      discordgo.MessageComponentInteractionData{CustomID: customID},
	}
}

func TestBlacklistedMessageIsDeletedAndAnswered(t *testing.T) {
	b, fake := newBot(t, map[string]string{
		store.SettingsFile: `{"blacklist_words": ["spam"], "activated_placeholders": ["/message/"]}`,
		store.MessagesFile: `{"messages": {"blacklisted_word": ["no /message/ here"]}}`,
	})

	b.handleMessage(context.Background(), message("buy SPAM now"))

	if len(fake.Deleted) != 1 || fake.Deleted[0] != "msg" {
		t.Fatalf("expected message deleted, got %v", fake.Deleted)
	}
	sends := fake.Sends()
	if len(sends) != 1 || sends[0].Content != "no spam here" || sends[0].ChannelID != "chan" {
		t.Fatalf("unexpected sends %+v", sends)
	}
	if sends[0].Reference != nil {
		t.Fatalf("expected a plain channel message")
	}
}

func TestPrefixCommandRuns(t *testing.T) {
	b, fake := newBot(t, map[string]string{
		store.SettingsFile:  `{"prefix": "?", "activated_placeholders": ["/message/"]}`,
		"commands/say.json": `{"messages": ["/message/"]}`,
	})

	b.handleMessage(context.Background(), message(`?say "hi there"`))
	b.handleMessage(context.Background(), message(`!say ignored`))

	sends := fake.Sends()
	if len(sends) != 1 || sends[0].Content != "hi there" {
		t.Fatalf("unexpected sends %+v", sends)
	}
	if sends[0].Reference == nil || sends[0].Reference.MessageID != "msg" {
		t.Fatalf("expected a reply to the command message")
	}
}

func TestBotMessagesAreIgnored(t *testing.T) {
	b, fake := newBot(t, map[string]string{
		store.SettingsFile: `{"blacklist_words": ["spam"]}`,
	})
	msg := message("spam")
	msg.Author.Bot = true

	b.handleMessage(context.Background(), msg)
	if len(fake.Calls) != 0 {
		t.Fatalf("expected no platform calls, got %+v", fake.Calls)
	}
}

func TestLevelUpIsAnnounced(t *testing.T) {
	b, fake := newBot(t, map[string]string{
		store.SettingsFile: `{"activated_placeholders": ["/username/", "/level/"]}`,
		store.MessagesFile: `{"messages": {"level_up": ["/username/ reached level /level/"]}}`,
		store.LevelsFile:   `{"xp_per_message": 10, "level_xp": [0, 10, 50], "global_max": 2}`,
	})

	b.handleMessage(context.Background(), message("hello"))

	sends := fake.Sends()
	if len(sends) != 1 || sends[0].Content != "alice reached level 1" {
		t.Fatalf("unexpected sends %+v", sends)
	}
	if xp, level := b.levels.State("42"); xp != 10 || level != 1 {
		t.Fatalf("unexpected state xp=%d level=%d", xp, level)
	}
}

const panel = `{
	"actions": {"jail": {"user": {"ban": {"id": "/1/", "reason": "panel"}}}},
	"views": {"panel": {"timeout": 60, "buttons": [{"label": "Jail", "args": {"jail": ["<@99>"]}}]}}
}`

func TestButtonRunsItsActions(t *testing.T) {
	b, fake := newBot(t, map[string]string{store.SettingsFile: panel})

	b.handleComponent(context.Background(), component("panel/0", now.Add(-30*time.Second)))

	bans := fake.CallsTo("Ban")
	if len(bans) != 1 || bans[0].Target != "99" || bans[0].Arg != "panel" {
		t.Fatalf("unexpected bans %+v", bans)
	}
	if len(fake.CallsTo("Acknowledge")) != 1 {
		t.Fatalf("expected the click to be acknowledged")
	}
}

func TestExpiredButtonAnswersViewExpired(t *testing.T) {
	b, fake := newBot(t, map[string]string{
		store.SettingsFile: panel,
		store.MessagesFile: `{"messages": {"view_expired": ["too late"]}}`,
	})

	b.handleComponent(context.Background(), component("panel/0", now.Add(-2*time.Minute)))

	if len(fake.CallsTo("Ban")) != 0 {
		t.Fatalf("expected no action on an expired view")
	}
	sends := fake.Sends()
	if len(sends) != 1 || sends[0].Route != "respond" || sends[0].Content != "too late" {
		t.Fatalf("unexpected sends %+v", sends)
	}
	if len(fake.CallsTo("Acknowledge")) != 0 {
		t.Fatalf("expected no extra acknowledgement")
	}
}

func TestUnknownButtonIsAcknowledged(t *testing.T) {
	b, fake := newBot(t, map[string]string{store.SettingsFile: panel})

	b.handleComponent(context.Background(), component("other/3", now))
	if len(fake.CallsTo("Acknowledge")) != 1 || len(fake.CallsTo("Ban")) != 0 {
		t.Fatalf("unexpected calls %+v", fake.Calls)
	}
}

func TestSlashCommandWithoutReplyGetsFallback(t *testing.T) {
	b, fake := newBot(t, map[string]string{})

	b.handleCommand(context.Background(), &discordgo.Interaction{
		ID:        "int",
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   "guild",
		ChannelID: "chan",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "42", Username: "alice"}},
		Data:      discordgo.ApplicationCommandInteractionData{Name: "ping"},
	})

	sends := fake.Sends()
	if len(sends) != 1 || sends[0].Content != noResponse || !sends[0].Ephemeral {
		t.Fatalf("unexpected sends %+v", sends)
	}
}

func TestSlashCommandReplies(t *testing.T) {
	b, fake := newBot(t, map[string]string{
		store.SettingsFile:    `{"activated_placeholders": ["/username/"]}`,
		"commands/avatar.json": `{"messages": ["/username/"]}`,
	})
	fake.Members["99"] = &discordgo.Member{User: &discordgo.User{ID: "99", Username: "bob"}}

	b.handleCommand(context.Background(), &discordgo.Interaction{
		ID:      "int",
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "guild",
		Member:  &discordgo.Member{User: &discordgo.User{ID: "42", Username: "alice"}},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "avatar",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "member", Type: discordgo.ApplicationCommandOptionUser, Value: "99"},
			},
		},
	})

	sends := fake.Sends()
	if len(sends) != 1 || sends[0].Route != "respond" || sends[0].Content != "bob" {
		t.Fatalf("unexpected sends %+v", sends)
	}
}
