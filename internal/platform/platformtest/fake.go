// Package platformtest provides an in-memory platform for tests.
package platformtest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Call is one recorded platform call.
type Call struct {
	Method  string
	GuildID string
	Target  string
	Arg     string
}

// Sent is one delivered message, whatever the route.
type Sent struct {
	Route     string
	ChannelID string
	UserID    string
	Content   string
	Embeds    []*discordgo.MessageEmbed
	Views     []discordgo.MessageComponent
	Ephemeral bool
	Reference *discordgo.MessageReference
}

// Fake records every call. Errors are injected per method name.
type Fake struct {
	mu sync.Mutex

	Errors   map[string]error
	Calls    []Call
	Messages []Sent

	Members  map[string]*discordgo.Member
	Roles    map[string]*discordgo.Role
	Guilds   map[string]*discordgo.Guild
	Channels map[string]*discordgo.Channel
	Holders  map[string][]string

	Bot     *discordgo.User
	Ping    time.Duration
	nextID  int
	Deleted []string
}

func New() *Fake {
	return &Fake{
		Errors:   make(map[string]error),
		Members:  make(map[string]*discordgo.Member),
		Roles:    make(map[string]*discordgo.Role),
		Guilds:   make(map[string]*discordgo.Guild),
		Channels: make(map[string]*discordgo.Channel),
		Holders:  make(map[string][]string),
		Bot:      &discordgo.User{ID: "bot", Username: "configbot"},
		Ping:     42 * time.Millisecond,
	}
}

// Fail makes every later call of method return err.
func (f *Fake) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		err = errors.New(method + " failed")
	}
	f.Errors[method] = err
}

func (f *Fake) record(method, guildID, target, arg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Method: method, GuildID: guildID, Target: target, Arg: arg})
	return f.Errors[method]
}

// CallsTo returns recorded calls of method in order.
func (f *Fake) CallsTo(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Sends returns the delivered messages.
func (f *Fake) Sends() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.Messages...)
}

func (f *Fake) deliver(s Sent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages = append(f.Messages, s)
}

func (f *Fake) message(channelID string) *discordgo.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return &discordgo.Message{ID: fmt.Sprintf("m%d", f.nextID), ChannelID: channelID}
}

func (f *Fake) Respond(i *discordgo.Interaction, data *discordgo.InteractionResponseData) error {
	if err := f.record("Respond", i.GuildID, i.ChannelID, data.Content); err != nil {
		return err
	}
	f.deliver(Sent{Route: "respond", ChannelID: i.ChannelID, Content: data.Content, Embeds: data.Embeds, Views: data.Components, Ephemeral: data.Flags&discordgo.MessageFlagsEphemeral != 0})
	return nil
}

func (f *Fake) Followup(i *discordgo.Interaction, data *discordgo.InteractionResponseData) error {
	if err := f.record("Followup", i.GuildID, i.ChannelID, data.Content); err != nil {
		return err
	}
	f.deliver(Sent{Route: "followup", ChannelID: i.ChannelID, Content: data.Content, Embeds: data.Embeds, Views: data.Components, Ephemeral: data.Flags&discordgo.MessageFlagsEphemeral != 0})
	return nil
}

func (f *Fake) Acknowledge(i *discordgo.Interaction) error {
	return f.record("Acknowledge", i.GuildID, i.ChannelID, i.ID)
}

func (f *Fake) Send(channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	if err := f.record("Send", "", channelID, msg.Content); err != nil {
		return nil, err
	}
	f.deliver(Sent{Route: "channel", ChannelID: channelID, Content: msg.Content, Embeds: msg.Embeds, Views: msg.Components, Reference: msg.Reference})
	return f.message(channelID), nil
}

func (f *Fake) DirectMessage(userID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	if err := f.record("DirectMessage", "", userID, msg.Content); err != nil {
		return nil, err
	}
	f.deliver(Sent{Route: "dm", UserID: userID, Content: msg.Content, Embeds: msg.Embeds, Views: msg.Components})
	return f.message("dm-" + userID), nil
}

func (f *Fake) DeleteMessage(channelID, messageID string) error {
	if err := f.record("DeleteMessage", "", channelID, messageID); err != nil {
		return err
	}
	f.mu.Lock()
	f.Deleted = append(f.Deleted, messageID)
	f.mu.Unlock()
	return nil
}

func (f *Fake) Ban(guildID, userID, reason string) error {
	return f.record("Ban", guildID, userID, reason)
}

func (f *Fake) Unban(guildID, userID string) error {
	return f.record("Unban", guildID, userID, "")
}

func (f *Fake) Kick(guildID, userID, reason string) error {
	return f.record("Kick", guildID, userID, reason)
}

func (f *Fake) AddRole(guildID, userID, roleID string) error {
	if err := f.record("AddRole", guildID, userID, roleID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if m := f.Members[userID]; m != nil {
		m.Roles = append(m.Roles, roleID)
	}
	return nil
}

func (f *Fake) RemoveRole(guildID, userID, roleID string) error {
	if err := f.record("RemoveRole", guildID, userID, roleID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if m := f.Members[userID]; m != nil {
		kept := m.Roles[:0]
		for _, id := range m.Roles {
			if id != roleID {
				kept = append(kept, id)
			}
		}
		m.Roles = kept
	}
	return nil
}

func (f *Fake) Timeout(guildID, userID string, until *time.Time) error {
	arg := ""
	if until != nil {
		arg = until.UTC().Format(time.RFC3339)
	}
	return f.record("Timeout", guildID, userID, arg)
}

func (f *Fake) Deafen(guildID, userID string, deaf bool) error {
	return f.record("Deafen", guildID, userID, fmt.Sprint(deaf))
}

func (f *Fake) Mute(guildID, userID string, mute bool) error {
	return f.record("Mute", guildID, userID, fmt.Sprint(mute))
}

func (f *Fake) Member(guildID, userID string) (*discordgo.Member, error) {
	if err := f.record("Member", guildID, userID, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if m := f.Members[userID]; m != nil {
		return m, nil
	}
	return nil, errors.New("unknown member " + userID)
}

func (f *Fake) Role(guildID, roleID string) (*discordgo.Role, error) {
	if err := f.record("Role", guildID, roleID, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if r := f.Roles[roleID]; r != nil {
		return r, nil
	}
	return nil, errors.New("unknown role " + roleID)
}

func (f *Fake) RoleMembers(guildID, roleID string) ([]string, error) {
	if err := f.record("RoleMembers", guildID, roleID, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Holders[roleID]...), nil
}

func (f *Fake) CreateRole(guildID string, params *discordgo.RoleParams) (*discordgo.Role, error) {
	if err := f.record("CreateRole", guildID, "", params.Name); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	role := &discordgo.Role{ID: fmt.Sprintf("r%d", f.nextID), Name: params.Name}
	if params.Color != nil {
		role.Color = *params.Color
	}
	if params.Hoist != nil {
		role.Hoist = *params.Hoist
	}
	if params.Mentionable != nil {
		role.Mentionable = *params.Mentionable
	}
	if params.Permissions != nil {
		role.Permissions = *params.Permissions
	}
	f.Roles[role.ID] = role
	return role, nil
}

func (f *Fake) EditRole(guildID, roleID string, params *discordgo.RoleParams) (*discordgo.Role, error) {
	if err := f.record("EditRole", guildID, roleID, params.Name); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	role := f.Roles[roleID]
	if role == nil {
		return nil, errors.New("unknown role " + roleID)
	}
	if params.Name != "" {
		role.Name = params.Name
	}
	if params.Color != nil {
		role.Color = *params.Color
	}
	return role, nil
}

func (f *Fake) DeleteRole(guildID, roleID string) error {
	if err := f.record("DeleteRole", guildID, roleID, ""); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Roles, roleID)
	return nil
}

func (f *Fake) Guild(guildID string) (*discordgo.Guild, error) {
	if err := f.record("Guild", guildID, "", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if g := f.Guilds[guildID]; g != nil {
		return g, nil
	}
	return &discordgo.Guild{ID: guildID, Name: "guild"}, nil
}

func (f *Fake) EditGuild(guildID string, params *discordgo.GuildParams) (*discordgo.Guild, error) {
	if err := f.record("EditGuild", guildID, "", params.Name); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	g := f.Guilds[guildID]
	if g == nil {
		g = &discordgo.Guild{ID: guildID}
		f.Guilds[guildID] = g
	}
	if params.Name != "" {
		g.Name = params.Name
	}
	if params.VerificationLevel != nil {
		g.VerificationLevel = *params.VerificationLevel
	}
	return g, nil
}

func (f *Fake) Channel(channelID string) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c := f.Channels[channelID]; c != nil {
		return c, nil
	}
	return &discordgo.Channel{ID: channelID, Name: "general", Type: discordgo.ChannelTypeGuildText}, nil
}

func (f *Fake) BotUser() *discordgo.User { return f.Bot }

func (f *Fake) Latency() time.Duration { return f.Ping }
