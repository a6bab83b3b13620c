// Package dispatch delivers built payloads to Discord: the reply to the
// invocation, the configured channel and the user's DMs. Each target is
// attempted on its own so one failure never blocks the others.
package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"configbot/internal/builder"
	"configbot/internal/placeholder"
	"configbot/internal/platform"
	"configbot/internal/result"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	maxContentLength = 2000
	// blank content carries a view that has nothing else to ride on.
	blankContent = "\u200b"
)

// LevelSource reports a user's leveling state for the /xp/ and /level/
// placeholders.
type LevelSource interface {
	State(userID string) (xp, level int)
}

type Dispatcher struct {
	platform platform.Platform
	builder  *builder.Builder
	levels   LevelSource
	logger   *zap.Logger
	now      func() time.Time
}

func New(p platform.Platform, b *builder.Builder, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		platform: p,
		builder:  b,
		logger:   logger,
		now:      time.Now,
	}
}

// WithLevels adds leveling placeholders to every dispatch.
func (d *Dispatcher) WithLevels(src LevelSource) *Dispatcher {
	d.levels = src
	return d
}

func (d *Dispatcher) Builder() *builder.Builder { return d.builder }

// Defaults returns the placeholders every response can use.
func (d *Dispatcher) Defaults(origin *Origin) placeholder.Values {
	values := placeholder.Values{
		placeholder.BotLatency: fmt.Sprintf("%dms", d.platform.Latency().Milliseconds()),
		placeholder.Datetime:   d.now().UTC().Format("2006-01-02 15:04:05"),
	}
	if origin == nil {
		return values
	}
	if origin.User != nil {
		values[placeholder.Username] = origin.User.Username
		values[placeholder.Number] = origin.User.ID
		values[placeholder.AvatarURL] = origin.User.AvatarURL("")
		if d.levels != nil {
			xp, level := d.levels.State(origin.User.ID)
			values[placeholder.XP] = strconv.Itoa(xp)
			values[placeholder.Level] = strconv.Itoa(level)
		}
	}
	if origin.ChannelID != "" {
		if ch, err := d.platform.Channel(origin.ChannelID); err == nil && ch != nil {
			values[placeholder.Channel] = ch.Name
		}
	}
	return values
}

// Send builds and delivers the response for command. A non-empty errorKey
// sends only that message key. values overlay the defaults.
func (d *Dispatcher) Send(ctx context.Context, origin *Origin, command, errorKey string, values placeholder.Values) Report {
	merged := d.Defaults(origin).Merge(values)
	var report Report
	for _, payload := range d.builder.Plan(command, errorKey, merged) {
		report.Merge(d.Deliver(ctx, origin, payload))
	}
	return report
}

// SendDM builds the response for command and delivers all of it to the
// user's direct messages.
func (d *Dispatcher) SendDM(ctx context.Context, origin *Origin, command string, values placeholder.Values) Report {
	merged := d.Defaults(origin).Merge(values)
	var report Report
	for _, payload := range d.builder.Plan(command, "", merged) {
		report.Merge(d.Deliver(ctx, origin, payload.AsDM()))
	}
	return report
}

// Deliver sends one payload. Reply content goes back to the invocation and
// falls back to a plain channel message when the reply is refused. The
// channel and DM parts are delivered independently.
func (d *Dispatcher) Deliver(ctx context.Context, origin *Origin, payload builder.Payload) Report {
	var report Report
	if payload.Empty() {
		report.add(Delivery{
			Key:    payload.Key,
			Target: TargetNone,
			Err:    result.NotConfigured("dispatch", "nothing configured for "+payload.Key),
		})
		return report
	}

	for _, msg := range replyMessages(payload) {
		d.reply(ctx, origin, payload.Key, msg, payload.Ephemeral, &report)
	}

	if !payload.Channel.Empty() {
		channelID := payload.Channel.ChannelID
		if channelID == "" && origin != nil {
			channelID = origin.ChannelID
		}
		for _, msg := range partMessages(payload.Channel) {
			report.add(d.toChannel(ctx, payload.Key, channelID, msg))
		}
	}

	if !payload.DM.Empty() {
		userID := origin.UserID()
		for _, msg := range partMessages(payload.DM) {
			report.add(d.toDM(ctx, payload.Key, userID, msg))
		}
	}

	for _, failed := range report.Failed() {
		d.logger.Warn("delivery failed",
			zap.String("key", failed.Key),
			zap.String("target", string(failed.Target)),
			zap.String("status", string(result.StatusOf(failed.Err))),
			zap.Error(failed.Err),
		)
	}
	return report
}

func (d *Dispatcher) reply(ctx context.Context, origin *Origin, key string, msg *discordgo.MessageSend, ephemeral bool, report *Report) {
	if err := ctx.Err(); err != nil {
		report.add(Delivery{Key: key, Target: TargetReply, Err: result.Platform("reply", err)})
		return
	}
	if origin == nil {
		report.add(Delivery{Key: key, Target: TargetReply, Err: result.NotConfigured("reply", "no origin")})
		return
	}

	var err error
	switch {
	case origin.Interaction != nil:
		err = d.interactionReply(origin, msg, ephemeral)
	case origin.MessageID != "":
		withRef := *msg
		withRef.Reference = &discordgo.MessageReference{
			MessageID: origin.MessageID,
			ChannelID: origin.ChannelID,
			GuildID:   origin.GuildID,
		}
		_, err = d.platform.Send(origin.ChannelID, &withRef)
	case origin.ChannelID != "":
		_, err = d.platform.Send(origin.ChannelID, msg)
	default:
		err = result.NotConfigured("reply", "origin has nothing to reply to")
	}
	if err == nil {
		report.add(Delivery{Key: key, Target: TargetReply, ChannelID: origin.ChannelID})
		return
	}
	report.add(Delivery{Key: key, Target: TargetReply, ChannelID: origin.ChannelID, Err: err})

	fallback := d.toChannel(ctx, key, origin.ChannelID, msg)
	fallback.Target = TargetFallback
	report.add(fallback)
}

func (d *Dispatcher) interactionReply(origin *Origin, msg *discordgo.MessageSend, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{
		Content:    msg.Content,
		Embeds:     msg.Embeds,
		Components: msg.Components,
	}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	if origin.responded.Load() {
		return d.platform.Followup(origin.Interaction, data)
	}
	if err := d.platform.Respond(origin.Interaction, data); err != nil {
		return err
	}
	origin.responded.Store(true)
	return nil
}

func (d *Dispatcher) toChannel(ctx context.Context, key, channelID string, msg *discordgo.MessageSend) Delivery {
	delivery := Delivery{Key: key, Target: TargetChannel, ChannelID: channelID}
	if err := ctx.Err(); err != nil {
		delivery.Err = result.Platform("channel", err)
		return delivery
	}
	if channelID == "" {
		delivery.Err = result.NotConfigured("channel", "no channel for "+key)
		return delivery
	}
	_, delivery.Err = d.platform.Send(channelID, msg)
	return delivery
}

func (d *Dispatcher) toDM(ctx context.Context, key, userID string, msg *discordgo.MessageSend) Delivery {
	delivery := Delivery{Key: key, Target: TargetDM}
	if err := ctx.Err(); err != nil {
		delivery.Err = result.Platform("dm", err)
		return delivery
	}
	if userID == "" {
		delivery.Err = result.NotConfigured("dm", "no user for "+key)
		return delivery
	}
	var sent *discordgo.Message
	sent, delivery.Err = d.platform.DirectMessage(userID, msg)
	if sent != nil {
		delivery.ChannelID = sent.ChannelID
	}
	return delivery
}

// replyMessages orders reply content: the embed, then one message per line.
// The view rides on the last message.
func replyMessages(p builder.Payload) []*discordgo.MessageSend {
	var out []*discordgo.MessageSend
	if p.Embed != nil {
		out = append(out, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{p.Embed}})
	}
	for _, line := range p.Lines {
		for _, chunk := range split(line) {
			out = append(out, &discordgo.MessageSend{Content: chunk})
		}
	}
	if p.View != nil {
		if len(out) == 0 {
			out = append(out, &discordgo.MessageSend{Content: blankContent})
		}
		out[len(out)-1].Components = p.View.Components
	}
	return out
}

func partMessages(p builder.Part) []*discordgo.MessageSend {
	var out []*discordgo.MessageSend
	for _, line := range p.Lines {
		for _, chunk := range split(line) {
			out = append(out, &discordgo.MessageSend{Content: chunk})
		}
	}
	for _, embed := range p.Embeds {
		out = append(out, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}})
	}
	for _, view := range p.Views {
		out = append(out, &discordgo.MessageSend{Content: blankContent, Components: view.Components})
	}
	return out
}

// split cuts content into message sized chunks on rune boundaries.
func split(s string) []string {
	if utf8.RuneCountInString(s) <= maxContentLength {
		return []string{s}
	}
	var out []string
	runes := []rune(s)
	for len(runes) > 0 {
		n := min(len(runes), maxContentLength)
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}
