package builder

import (
	"strconv"
	"strings"
	"time"

	"configbot/internal/placeholder"
	"configbot/internal/store"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
)

const (
	buttonsPerRow = 5
	maxRows       = 5
)

// View is a rendered button view.
type View struct {
	Name       string
	Timeout    time.Duration
	Components []discordgo.MessageComponent
}

// ButtonID returns the custom id used for a button. Configured ids win;
// otherwise the id is derived from the view name and position.
func ButtonID(view string, index int, button store.Button) string {
	if button.CustomID != "" {
		return button.CustomID
	}
	return strings.ReplaceAll(view, " ", "") + "/" + strconv.Itoa(index)
}

// Button finds the configured button behind a custom id.
func (b *Builder) Button(customID string) (string, store.View, store.Button, bool) {
	for _, name := range b.store.ViewNames() {
		view, ok := b.store.View(name)
		if !ok {
			continue
		}
		for i, button := range view.Buttons {
			if ButtonID(name, i, button) == customID {
				return name, view, button, true
			}
		}
	}
	return "", store.View{}, store.Button{}, false
}

func (b *Builder) view(name string, view store.View, r *placeholder.Replacer) *View {
	buttons := make([]discordgo.MessageComponent, 0, len(view.Buttons))
	for i, cfg := range view.Buttons {
		label := strings.TrimSpace(r.Replace(cfg.Label))
		if label == "" {
			continue
		}
		button := discordgo.Button{
			Label:    label,
			Style:    buttonStyle(cfg.Style),
			Disabled: cfg.Disabled,
		}
		if button.Style == discordgo.LinkButton {
			button.URL = b.link(r.Replace(cfg.URL))
			if button.URL == "" {
				continue
			}
		} else {
			button.CustomID = ButtonID(name, i, cfg)
		}
		buttons = append(buttons, button)
	}
	if len(buttons) == 0 {
		return nil
	}

	rows := lo.Chunk(buttons, buttonsPerRow)
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	components := lo.Map(rows, func(row []discordgo.MessageComponent, _ int) discordgo.MessageComponent {
		return discordgo.ActionsRow{Components: row}
	})
	return &View{
		Name:       name,
		Timeout:    time.Duration(view.Timeout) * time.Second,
		Components: components,
	}
}

func buttonStyle(style string) discordgo.ButtonStyle {
	switch strings.ToLower(strings.TrimSpace(style)) {
	case "secondary", "grey", "gray":
		return discordgo.SecondaryButton
	case "success", "green":
		return discordgo.SuccessButton
	case "danger", "red":
		return discordgo.DangerButton
	case "link", "url":
		return discordgo.LinkButton
	default:
		return discordgo.PrimaryButton
	}
}
