package bot

import (
	"time"

	"configbot/internal/action"
	"configbot/internal/analytics"
	"configbot/internal/audit"
	"configbot/internal/builder"
	"configbot/internal/command"
	"configbot/internal/config"
	"configbot/internal/dispatch"
	"configbot/internal/leveling"
	"configbot/internal/platform"
	"configbot/internal/schedule"
	"configbot/internal/storage"
	"configbot/internal/store"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg      config.Config
	logger   *zap.Logger
	store    *store.Store
	session  *discordgo.Session
	platform platform.Platform
	dispatch *dispatch.Dispatcher
	exec     *action.Executor
	commands *command.Registry
	levels   *leveling.Engine
	now      func() time.Time
}

// Services are the process level dependencies built before the bot.
type Services struct {
	Store     *store.Store
	Storage   *storage.Store
	Audit     *audit.Logger
	Analytics *analytics.Service
}

func New(cfg config.Config, logger *zap.Logger, svc Services) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildVoiceStates

	b, err := assemble(cfg, logger, platform.NewDiscord(session), svc)
	if err != nil {
		return nil, err
	}
	b.session = session
	return b, nil
}

// assemble wires the bot around a platform. Tests pass a fake.
func assemble(cfg config.Config, logger *zap.Logger, p platform.Platform, svc Services) (*Bot, error) {
	levels := leveling.New(svc.Store, logger)
	d := dispatch.New(p, builder.New(svc.Store, logger), logger).WithLevels(levels)

	exec, err := action.NewExecutor(p, d, svc.Store, schedule.New(logger), logger)
	if err != nil {
		return nil, err
	}
	exec.WithReversalTimeout(time.Duration(cfg.ReversalTimeoutSecs) * time.Second)
	if svc.Audit != nil {
		exec.WithJournal(svc.Audit)
	}

	registry := command.New(command.Deps{
		Store:     svc.Store,
		Platform:  p,
		Dispatch:  d,
		Executor:  exec,
		Storage:   svc.Storage,
		Levels:    levels,
		Analytics: svc.Analytics,
		Logger:    logger,
	})
	exec.WithInvoker(registry)

	return &Bot{
		cfg:      cfg,
		logger:   logger,
		store:    svc.Store,
		platform: p,
		dispatch: d,
		exec:     exec,
		commands: registry,
		levels:   levels,
		now:      time.Now,
	}, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if b.cfg.SyncCommands {
		if err := b.registerCommands(); err != nil {
			return err
		}
	}
	return nil
}

// Close cancels every pending reversal and disconnects. Reversals that have
// not fired by now are dropped, so their effects stay in place.
func (b *Bot) Close() {
	if n := b.exec.Close(); n > 0 {
		b.logger.Warn("reversals dropped on shutdown", zap.Int("count", n))
	}
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready",
		zap.String("user", event.User.Username),
		zap.Int("guilds", len(event.Guilds)),
	)
}
