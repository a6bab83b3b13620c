package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"configbot/internal/builder"
	"configbot/internal/placeholder"
	"configbot/internal/platform/platformtest"
	"configbot/internal/result"
	"configbot/internal/store/storetest"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func newDispatcher(t *testing.T, docs map[string]string) (*Dispatcher, *platformtest.Fake) {
	t.Helper()
	st := storetest.Open(t, docs)
	fake := platformtest.New()
	return New(fake, builder.New(st, zap.NewNop()), zap.NewNop()), fake
}

func messageOrigin() *Origin {
	return FromMessage(&discordgo.Message{
		ID:        "msg",
		ChannelID: "chan",
		GuildID:   "guild",
		Author:    &discordgo.User{ID: "42", Username: "alice"},
	})
}

func interactionOrigin() *Origin {
	return FromInteraction(&discordgo.Interaction{
		ID:        "int",
		GuildID:   "guild",
		ChannelID: "chan",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "42", Username: "alice"}},
	})
}

type levels struct{}

func (levels) State(string) (int, int) { return 30, 2 }

func TestSendSingleLineSendsOneMessage(t *testing.T) {
	d, fake := newDispatcher(t, map[string]string{"commands/hi.json": `{"messages":["hi"]}`})
	report := d.Send(context.Background(), messageOrigin(), "hi", "", nil)

	sends := fake.Sends()
	if len(sends) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sends))
	}
	if sends[0].Content != "hi" || sends[0].Reference == nil || sends[0].Reference.MessageID != "msg" {
		t.Fatalf("unexpected send %+v", sends[0])
	}
	if err := report.Err(); err != nil {
		t.Fatalf("expected clean report, got %v", err)
	}
}

func TestInteractionRespondThenFollowup(t *testing.T) {
	d, fake := newDispatcher(t, map[string]string{"commands/hi.json": `{"messages":["one","two"]}`})
	origin := interactionOrigin()
	d.Send(context.Background(), origin, "hi", "", nil)

	if len(fake.CallsTo("Respond")) != 1 || len(fake.CallsTo("Followup")) != 1 {
		t.Fatalf("expected respond then followup, got %+v", fake.Calls)
	}
	if !origin.Responded() {
		t.Fatalf("expected origin marked responded")
	}
}

func TestReplyFailureFallsBackToChannel(t *testing.T) {
	d, fake := newDispatcher(t, map[string]string{"commands/hi.json": `{"messages":["hi"]}`})
	fake.Fail("Respond", errors.New("token expired"))

	report := d.Send(context.Background(), interactionOrigin(), "hi", "", nil)

	if report.Delivered(TargetFallback) != 1 {
		t.Fatalf("expected fallback delivery, got %+v", report.Deliveries)
	}
	sends := fake.Sends()
	if len(sends) != 1 || sends[0].Route != "channel" || sends[0].ChannelID != "chan" {
		t.Fatalf("unexpected sends %+v", sends)
	}
	failed := report.Failed()
	if len(failed) != 1 || result.StatusOf(failed[0].Err) != result.StatusDeliveryFailed {
		t.Fatalf("expected failed reply recorded, got %+v", failed)
	}
}

func TestDMFailureDoesNotBlockChannel(t *testing.T) {
	d, fake := newDispatcher(t, map[string]string{
		"config.json": `{
			"channels": {"banned": 77},
			"dm": {"banned": {"messages": ["dm_note"]}},
			"channel": {"banned": {"messages": ["log_note"]}}
		}`,
		"commands/ban.json": `{
			"message_names": ["banned"],
			"messages": {"banned": "done", "dm_note": "you were banned", "log_note": "someone was banned"}
		}`,
	})
	fake.Fail("DirectMessage", errors.New("dms closed"))

	report := d.Send(context.Background(), messageOrigin(), "ban", "", nil)

	if report.Delivered(TargetChannel) != 1 {
		t.Fatalf("expected channel delivery, got %+v", report.Deliveries)
	}
	if report.Delivered(TargetReply) != 1 {
		t.Fatalf("expected reply delivery, got %+v", report.Deliveries)
	}
	var sawLog bool
	for _, s := range fake.Sends() {
		if s.ChannelID == "77" && s.Content == "someone was banned" {
			sawLog = true
		}
	}
	if !sawLog {
		t.Fatalf("expected log channel message, got %+v", fake.Sends())
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0].Target != TargetDM {
		t.Fatalf("expected only dm failure, got %+v", failed)
	}
}

func TestNothingConfiguredReportsNotConfigured(t *testing.T) {
	d, fake := newDispatcher(t, nil)
	report := d.Send(context.Background(), messageOrigin(), "missing", "", nil)

	if len(fake.Sends()) != 0 {
		t.Fatalf("expected no sends")
	}
	failed := report.Failed()
	if len(failed) != 1 || !errors.Is(failed[0].Err, result.ErrNotConfigured) {
		t.Fatalf("expected not configured, got %+v", failed)
	}
}

func TestDefaultsAndEphemeral(t *testing.T) {
	d, fake := newDispatcher(t, map[string]string{
		"config.json":       `{"activated_placeholders": ["/username/", "/level/", "/eph/"]}`,
		"commands/rank.json": `{"messages": ["/eph//username/ is level /level/"]}`,
	})
	d.WithLevels(levels{})

	d.Send(context.Background(), interactionOrigin(), "rank", "", nil)

	sends := fake.Sends()
	if len(sends) != 1 {
		t.Fatalf("expected 1 send, got %d", len(sends))
	}
	if sends[0].Content != "alice is level 2" || !sends[0].Ephemeral {
		t.Fatalf("unexpected send %+v", sends[0])
	}
}

func TestValuesOverrideDefaults(t *testing.T) {
	d, fake := newDispatcher(t, map[string]string{
		"config.json":      `{"activated_placeholders": ["/username/"]}`,
		"commands/hi.json": `{"messages": ["hi /username/"]}`,
	})
	d.Send(context.Background(), messageOrigin(), "hi", "", placeholder.Values{placeholder.Username: "bob"})
	if got := fake.Sends()[0].Content; got != "hi bob" {
		t.Fatalf("expected override, got %q", got)
	}
}

func TestViewRidesOnLastMessage(t *testing.T) {
	d, fake := newDispatcher(t, map[string]string{
		"config.json":      `{"views": {"message": {"buttons": [{"label": "Ok"}]}}}`,
		"commands/hi.json": `{"messages": ["a", "b"]}`,
	})
	d.Send(context.Background(), messageOrigin(), "hi", "", nil)

	sends := fake.Sends()
	if len(sends) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sends))
	}
	if len(sends[0].Views) != 0 || len(sends[1].Views) != 1 {
		t.Fatalf("expected view on last message, got %+v", sends)
	}
}

func TestLongLinesAreSplit(t *testing.T) {
	long := strings.Repeat("x", maxContentLength+10)
	parts := split(long)
	if len(parts) != 2 || len(parts[0]) != maxContentLength || len(parts[1]) != 10 {
		t.Fatalf("unexpected split lengths %d", len(parts))
	}
}

func TestCancelledContextSkipsDelivery(t *testing.T) {
	d, fake := newDispatcher(t, map[string]string{"commands/hi.json": `{"messages":["hi"]}`})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := d.Send(ctx, messageOrigin(), "hi", "", nil)
	if len(fake.Sends()) != 0 {
		t.Fatalf("expected nothing sent")
	}
	if report.Err() == nil {
		t.Fatalf("expected errors in report")
	}
}

func TestSendDMMovesReplyToDirectMessages(t *testing.T) {
	d, fake := newDispatcher(t, map[string]string{"commands/rules.json": `{"messages":["be nice"]}`})
	report := d.SendDM(context.Background(), messageOrigin(), "rules", nil)

	sends := fake.Sends()
	if len(sends) != 1 || sends[0].Route != "dm" || sends[0].UserID != "42" || sends[0].Content != "be nice" {
		t.Fatalf("unexpected sends %+v", sends)
	}
	if report.Delivered(TargetDM) != 1 {
		t.Fatalf("expected dm delivery, got %+v", report.Deliveries)
	}
}
