package platform

import (
	"time"

	"configbot/internal/result"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
)

// ephemeralFlag mirrors discordgo.MessageFlagsEphemeral for webhook params.
const ephemeralFlag = 1 << 6

const memberPageSize = 1000

type Discord struct {
	session *discordgo.Session
}

func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

func (d *Discord) Session() *discordgo.Session { return d.session }

func (d *Discord) Respond(i *discordgo.Interaction, data *discordgo.InteractionResponseData) error {
	err := d.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	return result.Platform("interaction respond", err)
}

func (d *Discord) Followup(i *discordgo.Interaction, data *discordgo.InteractionResponseData) error {
	params := &discordgo.WebhookParams{
		Content:    data.Content,
		Embeds:     data.Embeds,
		Components: data.Components,
	}
	if data.Flags&discordgo.MessageFlagsEphemeral != 0 {
		params.Flags = ephemeralFlag
	}
	_, err := d.session.FollowupMessageCreate(i, true, params)
	return result.Platform("interaction followup", err)
}

func (d *Discord) Acknowledge(i *discordgo.Interaction) error {
	err := d.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	return result.Platform("interaction acknowledge", err)
}

func (d *Discord) Send(channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	sent, err := d.session.ChannelMessageSendComplex(channelID, msg)
	return sent, result.Platform("channel send", err)
}

func (d *Discord) DirectMessage(userID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	channel, err := d.session.UserChannelCreate(userID)
	if err != nil {
		return nil, result.Platform("open dm", err)
	}
	sent, err := d.session.ChannelMessageSendComplex(channel.ID, msg)
	return sent, result.Platform("dm send", err)
}

func (d *Discord) DeleteMessage(channelID, messageID string) error {
	return result.Platform("message delete", d.session.ChannelMessageDelete(channelID, messageID))
}

func (d *Discord) Ban(guildID, userID, reason string) error {
	return result.Platform("ban", d.session.GuildBanCreateWithReason(guildID, userID, reason, 0))
}

func (d *Discord) Unban(guildID, userID string) error {
	return result.Platform("unban", d.session.GuildBanDelete(guildID, userID))
}

func (d *Discord) Kick(guildID, userID, reason string) error {
	return result.Platform("kick", d.session.GuildMemberDeleteWithReason(guildID, userID, reason))
}

func (d *Discord) AddRole(guildID, userID, roleID string) error {
	return result.Platform("role add", d.session.GuildMemberRoleAdd(guildID, userID, roleID))
}

func (d *Discord) RemoveRole(guildID, userID, roleID string) error {
	return result.Platform("role remove", d.session.GuildMemberRoleRemove(guildID, userID, roleID))
}

func (d *Discord) Timeout(guildID, userID string, until *time.Time) error {
	return result.Platform("timeout", d.session.GuildMemberTimeout(guildID, userID, until))
}

func (d *Discord) Deafen(guildID, userID string, deaf bool) error {
	return result.Platform("deafen", d.session.GuildMemberDeafen(guildID, userID, deaf))
}

func (d *Discord) Mute(guildID, userID string, mute bool) error {
	return result.Platform("mute", d.session.GuildMemberMute(guildID, userID, mute))
}

func (d *Discord) Member(guildID, userID string) (*discordgo.Member, error) {
	if d.session.State != nil {
		if member, err := d.session.State.Member(guildID, userID); err == nil && member != nil {
			return member, nil
		}
	}
	member, err := d.session.GuildMember(guildID, userID)
	return member, result.Platform("member lookup", err)
}

func (d *Discord) Role(guildID, roleID string) (*discordgo.Role, error) {
	if d.session.State != nil {
		if role, err := d.session.State.Role(guildID, roleID); err == nil && role != nil {
			return role, nil
		}
	}
	roles, err := d.session.GuildRoles(guildID)
	if err != nil {
		return nil, result.Platform("role lookup", err)
	}
	for _, role := range roles {
		if role.ID == roleID {
			return role, nil
		}
	}
	return nil, result.NotConfigured("role lookup", "unknown role "+roleID)
}

// RoleMembers pages through the guild member list. It needs the guild
// members intent.
func (d *Discord) RoleMembers(guildID, roleID string) ([]string, error) {
	var (
		ids   []string
		after string
	)
	for {
		page, err := d.session.GuildMembers(guildID, after, memberPageSize)
		if err != nil {
			return ids, result.Platform("member list", err)
		}
		for _, member := range page {
			if member.User == nil {
				continue
			}
			for _, id := range member.Roles {
				if id == roleID {
					ids = append(ids, member.User.ID)
					break
				}
			}
		}
		if len(page) < memberPageSize {
			return ids, nil
		}
		last := page[len(page)-1]
		if last.User == nil {
			return ids, errors.New("member list page ended without a user")
		}
		after = last.User.ID
	}
}

func (d *Discord) CreateRole(guildID string, params *discordgo.RoleParams) (*discordgo.Role, error) {
	role, err := d.session.GuildRoleCreate(guildID, params)
	return role, result.Platform("role create", err)
}

func (d *Discord) EditRole(guildID, roleID string, params *discordgo.RoleParams) (*discordgo.Role, error) {
	role, err := d.session.GuildRoleEdit(guildID, roleID, params)
	return role, result.Platform("role edit", err)
}

func (d *Discord) DeleteRole(guildID, roleID string) error {
	return result.Platform("role delete", d.session.GuildRoleDelete(guildID, roleID))
}

func (d *Discord) Guild(guildID string) (*discordgo.Guild, error) {
	if d.session.State != nil {
		if guild, err := d.session.State.Guild(guildID); err == nil && guild != nil {
			return guild, nil
		}
	}
	guild, err := d.session.Guild(guildID)
	return guild, result.Platform("guild lookup", err)
}

func (d *Discord) EditGuild(guildID string, params *discordgo.GuildParams) (*discordgo.Guild, error) {
	guild, err := d.session.GuildEdit(guildID, params)
	return guild, result.Platform("guild edit", err)
}

func (d *Discord) Channel(channelID string) (*discordgo.Channel, error) {
	if d.session.State != nil {
		if channel, err := d.session.State.Channel(channelID); err == nil && channel != nil {
			return channel, nil
		}
	}
	channel, err := d.session.Channel(channelID)
	return channel, result.Platform("channel lookup", err)
}

func (d *Discord) BotUser() *discordgo.User {
	if d.session.State == nil {
		return nil
	}
	return d.session.State.User
}

func (d *Discord) Latency() time.Duration {
	return d.session.HeartbeatLatency()
}
