package builder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"configbot/internal/placeholder"
	"configbot/internal/store"
	"configbot/internal/utils"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
)

// Platform limits for embeds.
const (
	maxTitle       = 256
	maxDescription = 4096
	maxFields      = 25
	maxFieldName   = 256
	maxFieldValue  = 1024
	maxFooter      = 2048
	maxAuthor      = 256
	maxEmbedTotal  = 6000
	maxColor       = 0xFFFFFF
	emptyFieldText = "\u200b"
)

const errEmptyEmbed = errors.Sentinel("embed has no content")

func (b *Builder) buildEmbed(tmpl store.EmbedTemplate, r *placeholder.Replacer) (*discordgo.MessageEmbed, error) {
	embed := &discordgo.MessageEmbed{
		Title:       strings.TrimSpace(r.Replace(tmpl.Title)),
		Description: strings.TrimSpace(r.Replace(tmpl.Description)),
		URL:         b.link(r.Replace(tmpl.URL)),
	}

	color, err := b.parseColor(r.Replace(string(tmpl.Color)))
	if err != nil {
		return nil, err
	}
	embed.Color = color

	if name := strings.TrimSpace(r.Replace(tmpl.AuthorName)); name != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name:    name,
			URL:     b.link(r.Replace(tmpl.AuthorURL)),
			IconURL: b.link(r.Replace(tmpl.AuthorIconURL)),
		}
	}
	if text := strings.TrimSpace(r.Replace(tmpl.Footer)); text != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text:    text,
			IconURL: b.link(r.Replace(tmpl.FooterIconURL)),
		}
	}
	if image := b.link(r.Replace(tmpl.ImageURL)); image != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: image}
	}
	if thumb := b.link(r.Replace(tmpl.ThumbnailURL)); thumb != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: thumb}
	}
	if tmpl.Timestamp {
		embed.Timestamp = b.now().Format(time.RFC3339)
	}

	for _, field := range tmpl.Fields {
		name := strings.TrimSpace(r.Replace(field.Name))
		if name == "" {
			continue
		}
		value := strings.TrimSpace(r.Replace(field.Value))
		if value == "" {
			value = emptyFieldText
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: name, Value: value, Inline: field.Inline})
	}

	if err := checkEmbed(embed); err != nil {
		return nil, err
	}
	return embed, nil
}

// link normalises a configured link. Links that cannot be used are dropped
// rather than failing the whole embed.
func (b *Builder) link(raw string) string {
	normalized, err := utils.NormalizeLink(raw)
	if err != nil {
		return ""
	}
	return normalized
}

// parseColor accepts "random", "#rrggbb", "0xrrggbb", a decimal value or bare
// hex digits.
func (b *Builder) parseColor(raw string) (int, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	var (
		value int64
		err   error
	)
	switch {
	case raw == "":
		return 0, nil
	case raw == "random":
		return b.random(maxColor + 1), nil
	case strings.HasPrefix(raw, "#"):
		value, err = strconv.ParseInt(raw[1:], 16, 64)
	case strings.HasPrefix(raw, "0x"):
		value, err = strconv.ParseInt(raw[2:], 16, 64)
	default:
		value, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			value, err = strconv.ParseInt(raw, 16, 64)
		}
	}
	if err != nil {
		return 0, errors.WithMessage(err, "invalid embed color "+strconv.Quote(raw))
	}
	if value < 0 || value > maxColor {
		return 0, fmt.Errorf("embed color %q out of range", raw)
	}
	return int(value), nil
}

func checkEmbed(embed *discordgo.MessageEmbed) error {
	total := len(embed.Title) + len(embed.Description)
	if embed.Title == "" && embed.Description == "" && len(embed.Fields) == 0 &&
		embed.Image == nil && embed.Author == nil && embed.Footer == nil && embed.Thumbnail == nil {
		return errEmptyEmbed
	}
	if len(embed.Title) > maxTitle {
		return errors.New("embed title too long")
	}
	if len(embed.Description) > maxDescription {
		return errors.New("embed description too long")
	}
	if len(embed.Fields) > maxFields {
		return errors.New("embed has too many fields")
	}
	for _, field := range embed.Fields {
		if len(field.Name) > maxFieldName || len(field.Value) > maxFieldValue {
			return errors.New("embed field too long: " + field.Name)
		}
		total += len(field.Name) + len(field.Value)
	}
	if embed.Footer != nil {
		if len(embed.Footer.Text) > maxFooter {
			return errors.New("embed footer too long")
		}
		total += len(embed.Footer.Text)
	}
	if embed.Author != nil {
		if len(embed.Author.Name) > maxAuthor {
			return errors.New("embed author too long")
		}
		total += len(embed.Author.Name)
	}
	if total > maxEmbedTotal {
		return errors.New("embed exceeds total size")
	}
	return nil
}
