package dispatch

import (
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
)

// Origin is where an invocation came from: a slash command or button
// interaction, or a prefix command message. It is shared by pointer so the
// first-reply bookkeeping follows the invocation.
type Origin struct {
	GuildID     string
	ChannelID   string
	User        *discordgo.User
	Member      *discordgo.Member
	Interaction *discordgo.Interaction
	MessageID   string

	responded atomic.Bool
}

func FromInteraction(i *discordgo.Interaction) *Origin {
	o := &Origin{
		GuildID:     i.GuildID,
		ChannelID:   i.ChannelID,
		Member:      i.Member,
		User:        i.User,
		Interaction: i,
	}
	if o.User == nil && i.Member != nil {
		o.User = i.Member.User
	}
	return o
}

func FromMessage(m *discordgo.Message) *Origin {
	o := &Origin{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		User:      m.Author,
		Member:    m.Member,
		MessageID: m.ID,
	}
	if o.Member != nil && o.Member.User == nil {
		o.Member.User = m.Author
	}
	return o
}

func (o *Origin) UserID() string {
	if o == nil || o.User == nil {
		return ""
	}
	return o.User.ID
}

func (o *Origin) Username() string {
	if o == nil || o.User == nil {
		return ""
	}
	return o.User.Username
}

// Roles returns the invoking member's role ids, if known.
func (o *Origin) Roles() []string {
	if o == nil || o.Member == nil {
		return nil
	}
	return o.Member.Roles
}

// Responded reports whether the interaction already has its initial response.
func (o *Origin) Responded() bool {
	return o.responded.Load()
}
