// Package builder turns configured templates into outbound payloads.
package builder

import (
	"math/rand"
	"slices"
	"strings"
	"time"

	"configbot/internal/placeholder"
	"configbot/internal/store"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Payload is everything configured for one message key. Each part is
// optional.
type Payload struct {
	Key       string
	Lines     []string
	Embed     *discordgo.MessageEmbed
	View      *View
	Ephemeral bool
	DM        Part
	Channel   Part
}

// Empty reports whether nothing would be delivered anywhere.
func (p Payload) Empty() bool {
	return len(p.Lines) == 0 && p.Embed == nil && p.View == nil && p.DM.Empty() && p.Channel.Empty()
}

// Part is content for an extra target: the user's DMs or a channel.
type Part struct {
	ChannelID string
	Lines     []string
	Embeds    []*discordgo.MessageEmbed
	Views     []*View
}

func (p Part) Empty() bool {
	return len(p.Lines) == 0 && len(p.Embeds) == 0 && len(p.Views) == 0
}

type Builder struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time
	random func(n int) int
}

func New(st *store.Store, logger *zap.Logger) *Builder {
	return &Builder{
		store:  st,
		logger: logger,
		now:    time.Now,
		random: rand.Intn,
	}
}

// Plan returns the payloads for one command response. An error key sends
// only that key; otherwise every key in message_names is sent, or the
// default key when none are listed.
func (b *Builder) Plan(command, errorKey string, values placeholder.Values) []Payload {
	var keys []string
	switch {
	case errorKey != "":
		keys = []string{errorKey}
	default:
		if cmd, ok := b.store.Command(command); ok {
			keys = cmd.MessageNames
		}
		if len(keys) == 0 {
			keys = []string{store.DefaultMessageKey}
		}
	}

	payloads := make([]Payload, 0, len(keys))
	for _, key := range keys {
		payloads = append(payloads, b.Build(command, key, values))
	}
	return payloads
}

// Build assembles the payload for command and key.
func (b *Builder) Build(command, key string, values placeholder.Values) Payload {
	active := b.store.ActivePlaceholders()
	eph := placeholder.IsActive(placeholder.Ephemeral, active)
	r := placeholder.NewReplacer(withoutEph(values), active)

	payload := Payload{Key: key}

	lines, marked := b.lines(command, key, eph, r)
	payload.Lines = lines
	payload.Ephemeral = marked

	if tmpl, ok := b.store.CommandEmbed(command, key); ok {
		if eph && strings.Contains(tmpl.Title, placeholder.Ephemeral) {
			payload.Ephemeral = true
		}
		payload.Embed = b.embed(command, key, tmpl, eph, r)
	}

	if view, ok := b.store.View(key); ok {
		payload.View = b.view(key, view, r)
	}

	if route, ok := b.store.DMRoute(key); ok {
		payload.DM = b.part(command, route, eph, r)
	}
	if route, ok := b.store.ChannelRoute(key); ok {
		payload.Channel = b.part(command, route, eph, r)
		payload.Channel.ChannelID = string(route.ChannelID)
	}
	return payload
}

func (b *Builder) lines(command, key string, eph bool, r *placeholder.Replacer) ([]string, bool) {
	raw := b.store.CommandLines(command, key)
	out := make([]string, 0, len(raw))
	marked := false
	for _, line := range raw {
		if eph && strings.Contains(line, placeholder.Ephemeral) {
			marked = true
			line = strings.ReplaceAll(line, placeholder.Ephemeral, "")
		}
		line = strings.TrimSpace(r.Replace(line))
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out, marked
}

func (b *Builder) embed(command, key string, tmpl store.EmbedTemplate, eph bool, r *placeholder.Replacer) *discordgo.MessageEmbed {
	if eph {
		tmpl.Title = strings.ReplaceAll(tmpl.Title, placeholder.Ephemeral, "")
	}
	embed, err := b.buildEmbed(tmpl, r)
	if err != nil {
		b.logger.Debug("embed skipped", zap.String("command", command), zap.String("key", key), zap.Error(err))
		return nil
	}
	return embed
}

func (b *Builder) part(command string, route store.Route, eph bool, r *placeholder.Replacer) Part {
	var part Part
	for _, key := range route.Messages {
		lines, _ := b.lines(command, key, eph, r)
		part.Lines = append(part.Lines, lines...)
	}
	for _, key := range route.Embeds {
		tmpl, ok := b.store.CommandEmbed(command, key)
		if !ok {
			continue
		}
		if embed := b.embed(command, key, tmpl, eph, r); embed != nil {
			part.Embeds = append(part.Embeds, embed)
		}
	}
	for _, name := range route.Views {
		view, ok := b.store.View(name)
		if !ok {
			continue
		}
		if built := b.view(name, view, r); built != nil {
			part.Views = append(part.Views, built)
		}
	}
	return part
}

func withoutEph(values placeholder.Values) placeholder.Values {
	if _, ok := values[placeholder.Ephemeral]; !ok {
		return values
	}
	out := make(placeholder.Values, len(values))
	for k, v := range values {
		if k != placeholder.Ephemeral {
			out[k] = v
		}
	}
	return out
}

// AsDM moves the reply content into the DM part so the whole payload goes to
// the user's direct messages.
func (p Payload) AsDM() Payload {
	out := p
	out.DM.Lines = append(slices.Clone(p.Lines), p.DM.Lines...)
	if p.Embed != nil {
		out.DM.Embeds = append([]*discordgo.MessageEmbed{p.Embed}, p.DM.Embeds...)
	}
	if p.View != nil {
		out.DM.Views = append([]*View{p.View}, p.DM.Views...)
	}
	out.Lines = nil
	out.Embed = nil
	out.View = nil
	out.Ephemeral = false
	return out
}
