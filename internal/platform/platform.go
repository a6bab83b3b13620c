// Package platform is the slice of the Discord API the bot drives.
package platform

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// Platform is implemented by Discord for production and by
// platformtest.Fake in tests. Errors returned by Discord are already
// classified with the result package.
type Platform interface {
	Respond(i *discordgo.Interaction, data *discordgo.InteractionResponseData) error
	Followup(i *discordgo.Interaction, data *discordgo.InteractionResponseData) error
	// Acknowledge answers a component interaction without changing its message.
	Acknowledge(i *discordgo.Interaction) error
	Send(channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error)
	DirectMessage(userID string, msg *discordgo.MessageSend) (*discordgo.Message, error)
	DeleteMessage(channelID, messageID string) error

	Ban(guildID, userID, reason string) error
	Unban(guildID, userID string) error
	Kick(guildID, userID, reason string) error
	AddRole(guildID, userID, roleID string) error
	RemoveRole(guildID, userID, roleID string) error
	Timeout(guildID, userID string, until *time.Time) error
	Deafen(guildID, userID string, deaf bool) error
	Mute(guildID, userID string, mute bool) error

	Member(guildID, userID string) (*discordgo.Member, error)
	Role(guildID, roleID string) (*discordgo.Role, error)
	RoleMembers(guildID, roleID string) ([]string, error)
	CreateRole(guildID string, params *discordgo.RoleParams) (*discordgo.Role, error)
	EditRole(guildID, roleID string, params *discordgo.RoleParams) (*discordgo.Role, error)
	DeleteRole(guildID, roleID string) error
	Guild(guildID string) (*discordgo.Guild, error)
	EditGuild(guildID string, params *discordgo.GuildParams) (*discordgo.Guild, error)
	Channel(channelID string) (*discordgo.Channel, error)

	BotUser() *discordgo.User
	Latency() time.Duration
}
