package command

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/kballard/go-shellquote"
)

const maxDescription = 100

// ApplicationCommands describes every enabled command for slash command
// sync. Option descriptions come from the configured argument texts.
func (r *Registry) ApplicationCommands() []*discordgo.ApplicationCommand {
	var out []*discordgo.ApplicationCommand
	for _, name := range r.names() {
		doc, _ := r.store.Command(name)
		if !doc.IsEnabled() {
			continue
		}
		b := r.builtins[name]
		description := doc.Description
		if description == "" {
			description = b.Description
		}
		if description == "" {
			description = name
		}
		cmd := &discordgo.ApplicationCommand{
			Name:        name,
			Description: truncate(description, maxDescription),
		}
		for _, arg := range b.Args {
			cmd.Options = append(cmd.Options, &discordgo.ApplicationCommandOption{
				Type:        optionType(arg.Kind),
				Name:        arg.Name,
				Description: truncate(r.store.ArgDescription(name, arg.Name), maxDescription),
				Required:    arg.Required,
			})
		}
		out = append(out, cmd)
	}
	return out
}

func optionType(kind ArgKind) discordgo.ApplicationCommandOptionType {
	switch kind {
	case ArgInteger:
		return discordgo.ApplicationCommandOptionInteger
	case ArgUser:
		return discordgo.ApplicationCommandOptionUser
	case ArgRole:
		return discordgo.ApplicationCommandOptionRole
	default:
		return discordgo.ApplicationCommandOptionString
	}
}

// OptionArgs lays slash command options out in the command's argument
// order, so slash and prefix invocations share handlers. A rest argument is
// split like a shell line.
func (r *Registry) OptionArgs(name string, options []*discordgo.ApplicationCommandInteractionDataOption) []string {
	b, ok := r.builtins[name]
	if !ok {
		return nil
	}
	byName := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		byName[opt.Name] = opt
	}

	var args []string
	for _, arg := range b.Args {
		opt, ok := byName[arg.Name]
		if !ok || opt.Value == nil {
			args = append(args, "")
			continue
		}
		value := optionValue(opt)
		if arg.Rest && arg.Kind == ArgString {
			args = append(args, Split(value)...)
			continue
		}
		args = append(args, value)
	}
	for len(args) > 0 && args[len(args)-1] == "" {
		args = args[:len(args)-1]
	}
	return args
}

func optionValue(opt *discordgo.ApplicationCommandInteractionDataOption) string {
	switch opt.Type {
	case discordgo.ApplicationCommandOptionInteger:
		return fmt.Sprint(opt.IntValue())
	case discordgo.ApplicationCommandOptionString:
		return opt.StringValue()
	default:
		// User, role and channel options carry the snowflake as a string.
		return fmt.Sprint(opt.Value)
	}
}

// Parse splits a prefixed message into a command name and its arguments. It
// reports false when content does not start with prefix.
func Parse(prefix, content string) (string, []string, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	words := Split(strings.TrimPrefix(content, prefix))
	if len(words) == 0 {
		return "", nil, false
	}
	return strings.ToLower(words[0]), words[1:], true
}

// Split breaks a line into words honoring shell quoting. Unbalanced quotes
// fall back to splitting on whitespace.
func Split(line string) []string {
	words, err := shellquote.Split(line)
	if err != nil {
		return strings.Fields(line)
	}
	return words
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
