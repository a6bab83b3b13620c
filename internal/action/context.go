package action

import (
	"fmt"
	"strconv"

	"configbot/internal/dispatch"
	"configbot/internal/placeholder"
	"configbot/internal/store"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
)

// Context tokens resolved from the invocation.
const (
	TokenUserID      = "@user.id"
	TokenUserName    = "@user.name"
	TokenChannelID   = "@channel.id"
	TokenChannelName = "@channel.name"
	TokenChannelType = "@channel.type"
	TokenGuildID     = "@guild.id"
	TokenGuildName   = "@guild.name"
	TokenBotID       = "@bot.id"
	TokenBotName     = "@bot.name"
	TokenBotLatency  = "@bot.latency"
)

var channelTypeNames = map[discordgo.ChannelType]string{
	discordgo.ChannelTypeGuildText:          "text",
	discordgo.ChannelTypeDM:                 "private",
	discordgo.ChannelTypeGuildVoice:         "voice",
	discordgo.ChannelTypeGroupDM:            "group",
	discordgo.ChannelTypeGuildCategory:      "category",
	discordgo.ChannelTypeGuildNews:          "news",
	discordgo.ChannelTypeGuildStageVoice:    "stage_voice",
	discordgo.ChannelTypeGuildPublicThread:  "public_thread",
	discordgo.ChannelTypeGuildPrivateThread: "private_thread",
}

// expander substitutes positional arguments and context tokens in one pass.
type expander struct {
	values placeholder.Values
}

func (x *expander) expand(s string) string {
	return placeholder.ReplaceAll(s, x.values)
}

func (x *expander) expandAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, x.expand(item))
	}
	return out
}

func (e *Executor) newExpander(origin *dispatch.Origin, args []string) *expander {
	values := placeholder.Positional(args)
	if origin == nil {
		return &expander{values: values}
	}

	if origin.User != nil {
		values[TokenUserID] = origin.User.ID
		values[TokenUserName] = origin.User.Username
	}
	if origin.ChannelID != "" {
		values[TokenChannelID] = origin.ChannelID
		if ch, err := e.platform.Channel(origin.ChannelID); err == nil && ch != nil {
			values[TokenChannelName] = ch.Name
			values[TokenChannelType] = channelTypeName(ch.Type)
		}
	}
	if origin.GuildID != "" {
		values[TokenGuildID] = origin.GuildID
		if g, err := e.platform.Guild(origin.GuildID); err == nil && g != nil {
			values[TokenGuildName] = g.Name
		}
	}

	bot := e.platform.BotUser()
	if bot != nil {
		values[TokenBotID] = bot.ID
		values[TokenBotName] = bot.Username
	}
	values[TokenBotLatency] = fmt.Sprintf("%dms", e.platform.Latency().Milliseconds())

	managements := e.store.RoleManagements()
	if len(managements) == 0 {
		return &expander{values: values}
	}
	userRoles := origin.Roles()
	var botRoles []string
	if bot != nil && origin.GuildID != "" {
		if m, err := e.platform.Member(origin.GuildID, bot.ID); err == nil && m != nil {
			botRoles = m.Roles
		}
	}
	for name, rule := range managements {
		if Satisfies(rule, userRoles) {
			values["@user."+name] = name
		}
		if Satisfies(rule, botRoles) {
			values["@bot."+name] = name
		}
	}
	return &expander{values: values}
}

// Satisfies reports whether roles meet a role-management rule: every role
// of all_roles_id, or at least one of any_roles_id.
func Satisfies(rule store.RoleManagement, roles []string) bool {
	held := store.IDs(roles)
	if len(rule.AllRoles) > 0 && lo.Every(held, rule.AllRoles) {
		return true
	}
	return len(rule.AnyRoles) > 0 && lo.Some(held, rule.AnyRoles)
}

func channelTypeName(t discordgo.ChannelType) string {
	if name, ok := channelTypeNames[t]; ok {
		return name
	}
	return strconv.Itoa(int(t))
}
