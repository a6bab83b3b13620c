package bot

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"configbot/internal/command"
	"configbot/internal/dispatch"
	"configbot/internal/placeholder"
	"configbot/internal/result"
	"configbot/internal/store"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const noResponse = "No response available."

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	b.handleMessage(context.Background(), msg.Message)
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ctx := context.Background()
	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, interaction.Interaction)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, interaction.Interaction)
	}
}

// handleMessage screens a guild message for blacklisted words, credits
// experience and runs prefix commands.
func (b *Bot) handleMessage(ctx context.Context, msg *discordgo.Message) {
	if msg == nil || msg.Author == nil || msg.Author.Bot {
		return
	}
	origin := dispatch.FromMessage(msg)

	if msg.GuildID != "" {
		if word, found := blacklisted(msg.Content, b.store.BlacklistWords()); found {
			b.removeBlacklisted(ctx, origin, msg, word)
			return
		}
		b.creditMessage(ctx, origin)
	}

	name, args, ok := command.Parse(b.store.Prefix(), msg.Content)
	if !ok {
		return
	}
	if _, known := b.commands.Resolve(name); !known {
		return
	}
	if err := b.commands.Invoke(ctx, origin, name, args); err != nil {
		b.logger.Debug("prefix command failed", zap.String("command", name), zap.Error(err))
	}
}

func blacklisted(content string, words []string) (string, bool) {
	lower := strings.ToLower(content)
	return lo.Find(words, func(word string) bool {
		word = strings.TrimSpace(strings.ToLower(word))
		return word != "" && strings.Contains(lower, word)
	})
}

func (b *Bot) removeBlacklisted(ctx context.Context, origin *dispatch.Origin, msg *discordgo.Message, word string) {
	if err := b.platform.DeleteMessage(msg.ChannelID, msg.ID); err != nil {
		b.logger.Warn("blacklisted message delete failed",
			zap.String("channel_id", msg.ChannelID),
			zap.String("status", string(result.StatusOf(err))),
			zap.Error(err),
		)
	}
	// The message is deleted; answer in the channel.
	origin.MessageID = ""
	origin.ChannelID = msg.ChannelID
	b.dispatch.Send(ctx, origin, "blacklist", store.KeyBlacklisted, placeholder.Values{placeholder.Message: word})
}

func (b *Bot) creditMessage(ctx context.Context, origin *dispatch.Origin) {
	res, err := b.levels.OnMessage(origin.UserID(), origin.Roles())
	if err != nil {
		b.logger.Warn("leveling update failed", zap.String("user_id", origin.UserID()), zap.Error(err))
		return
	}
	if !res.LevelUp {
		return
	}
	b.dispatch.Send(ctx, withoutReply(origin), "level", store.KeyLevelUp, placeholder.Values{
		placeholder.XP:    strconv.Itoa(res.XP),
		placeholder.Level: strconv.Itoa(res.Level),
	})
}

// withoutReply copies the invocation so a notice goes to the channel rather
// than replying to the member's message.
func withoutReply(o *dispatch.Origin) *dispatch.Origin {
	return &dispatch.Origin{GuildID: o.GuildID, ChannelID: o.ChannelID, User: o.User, Member: o.Member}
}

func (b *Bot) handleCommand(ctx context.Context, interaction *discordgo.Interaction) {
	data := interaction.ApplicationCommandData()
	origin := dispatch.FromInteraction(interaction)
	args := b.commands.OptionArgs(data.Name, data.Options)
	if err := b.commands.Invoke(ctx, origin, data.Name, args); err != nil {
		b.logger.Debug("slash command failed", zap.String("command", data.Name), zap.Error(err))
	}
	if !origin.Responded() {
		b.respond(interaction, noResponse, true)
	}
}

// handleComponent runs the actions behind a button. Each key of the button
// args names an action; its values fill /1/, /2/, ...
func (b *Bot) handleComponent(ctx context.Context, interaction *discordgo.Interaction) {
	data := interaction.MessageComponentData()
	origin := dispatch.FromInteraction(interaction)

	viewName, view, button, ok := b.dispatch.Builder().Button(data.CustomID)
	if !ok {
		b.logger.Debug("unknown button", zap.String("custom_id", data.CustomID))
		b.acknowledge(interaction)
		return
	}

	if b.expired(interaction.Message, view.Timeout) {
		b.dispatch.Send(ctx, origin, viewName, store.KeyViewExpired, nil)
		if !origin.Responded() {
			b.acknowledge(interaction)
		}
		return
	}

	names := lo.Keys(button.Args)
	sort.Strings(names)
	for _, name := range names {
		for _, out := range b.exec.Execute(ctx, origin, name, button.Args[name]) {
			if out.Err != nil {
				b.logger.Info("button action failed",
					zap.String("view", viewName),
					zap.String("action", name),
					zap.String("op", out.Op),
					zap.String("status", string(out.Status)),
					zap.Error(out.Err),
				)
			}
		}
	}
	if !origin.Responded() {
		b.acknowledge(interaction)
	}
}

// expired reports whether a view sent at the message's timestamp has timed
// out. A zero timeout never expires.
func (b *Bot) expired(msg *discordgo.Message, timeoutSeconds int) bool {
	if msg == nil || timeoutSeconds <= 0 || msg.Timestamp.IsZero() {
		return false
	}
	return b.now().After(msg.Timestamp.Add(time.Duration(timeoutSeconds) * time.Second))
}

func (b *Bot) respond(interaction *discordgo.Interaction, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := b.platform.Respond(interaction, &discordgo.InteractionResponseData{Content: content, Flags: flags}); err != nil {
		b.logger.Debug("interaction respond failed", zap.Error(err))
	}
}

func (b *Bot) acknowledge(interaction *discordgo.Interaction) {
	if err := b.platform.Acknowledge(interaction); err != nil {
		b.logger.Debug("interaction acknowledge failed", zap.Error(err))
	}
}
