package bot

import (
	"go.uber.org/zap"
)

// registerCommands syncs slash commands with the registry: existing commands
// are edited in place, new ones created and stale ones deleted. With a guild
// id configured the sync is scoped to that guild.
func (b *Bot) registerCommands() error {
	commands := b.commands.ApplicationCommands()
	appID := b.session.State.User.ID
	scope := b.cfg.GuildID

	existing, err := b.session.ApplicationCommands(appID, scope)
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, scope, cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]string, len(existing))
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd.ID
	}

	desired := make(map[string]struct{}, len(commands))
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if id, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, scope, id, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, scope, cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		if err := b.session.ApplicationCommandDelete(appID, scope, cmd.ID); err != nil {
			b.logger.Warn("stale command delete failed", zap.String("command", cmd.Name), zap.Error(err))
		}
	}

	b.logger.Info("commands synced", zap.Int("count", len(commands)), zap.String("guild_id", scope))
	return nil
}
