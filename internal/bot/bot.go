package bot

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/robalyx/sentinel/internal/bot/commands"
	"github.com/robalyx/sentinel/internal/bot/confirm"
	"github.com/robalyx/sentinel/internal/bot/dialog"
	"github.com/robalyx/sentinel/internal/bot/platform"
	"github.com/robalyx/sentinel/internal/common/types"
	"github.com/robalyx/sentinel/internal/detector"
	"github.com/robalyx/sentinel/internal/report"
	"github.com/robalyx/sentinel/internal/setup"
	"github.com/robalyx/sentinel/internal/setup/telemetry"
	"go.uber.org/zap"
)

// Bot routes gateway events to the detector, the moderator commands and the report dialog.
type Bot struct {
	client         bot.Client
	platform       *platform.REST
	detector       *detector.Detector
	commands       *commands.Handler
	dialog         *dialog.Handler
	waiter         *confirm.Waiter
	router         router
	requestTimeout time.Duration
	commandTimeout time.Duration
	logger         *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New initializes a Bot from the application bundle and configures the Discord
// client with the gateway intents and event listeners it needs.
func New(app *setup.App) (*Bot, error) {
	cfg := app.Config.Bot
	logger := app.Logger.Named("bot")

	ctx, cancel := context.WithCancel(context.Background())

	confirmTimeout := time.Duration(cfg.Moderation.ConfirmTimeout) * time.Second
	if confirmTimeout <= 0 {
		confirmTimeout = confirm.DefaultTimeout
	}

	requestTimeout := telemetry.ServiceBot.RequestTimeout(app.Config)

	b := &Bot{
		waiter:         confirm.NewWaiter(),
		router:         newRouter(cfg.Discord.ModeratorChannelID, cfg.Discord.GuildIDs, cfg.Discord.CommandPrefix),
		requestTimeout: requestTimeout,
		commandTimeout: requestTimeout + confirmTimeout,
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
	}

	client, err := disgo.New(cfg.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMessages,
				gateway.IntentGuildMessageReactions,
				gateway.IntentDirectMessages,
				gateway.IntentMessageContent,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnGuildMessageCreate:      b.handleGuildMessage,
			OnDMMessageCreate:         b.handleDirectMessage,
			OnGuildMessageReactionAdd: b.handleReaction,
		}),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	b.client = client
	b.platform = platform.New(client.Rest(), app.Logger)

	dialogFlow := report.NewDialog(b.platform, app.Queue, nil)
	b.dialog = dialog.New(report.NewManager(dialogFlow, app.Sessions, app.Limiter, app.Logger), b.platform, app.Logger)

	b.detector = detector.New(detector.Dependencies{
		Window:     app.Window,
		Classifier: app.Classifier,
		Risks:      app.Risks,
		Queue:      app.Queue,
		Store:      app.Stats,
		Recorder:   app.Exporter,
		Notifier:   NewNotifier(b.platform, cfg.Discord.ModeratorChannelID, app.Logger),
		Enforcer:   b.platform,
		Limiter:    app.Limiter,
		Metrics:    app.Metrics,
		Logger:     app.Logger,
	}, detector.Options{
		PostAnalysis:       cfg.Moderation.PostAnalysis,
		EnforceAutoActions: cfg.Moderation.EnforceAutoActions,
	})

	b.commands = commands.New(commands.Dependencies{
		Platform:       b.platform,
		Queue:          app.Queue,
		Risks:          app.Risks,
		Exporter:       app.Exporter,
		Waiter:         b.waiter,
		Limiter:        app.Limiter,
		Logger:         app.Logger,
		ConfirmTimeout: confirmTimeout,
	})

	return b, nil
}

// Start opens the gateway connection.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting bot",
		zap.Uint64("moderator_channel_id", b.router.moderatorChannelID),
		zap.Int("monitored_guilds", len(b.router.guilds)))

	return b.client.OpenGateway(ctx)
}

// Close shuts down the gateway and waits for in-flight handlers.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")
	b.client.Close(ctx)
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("Timed out waiting for handlers", zap.Error(ctx.Err()))
	}
}

// handleGuildMessage runs moderator commands or sends the message through the detector.
func (b *Bot) handleGuildMessage(event *events.GuildMessageCreate) {
	msg := event.Message
	if msg.Author.Bot || msg.Author.System {
		return
	}

	channelID := uint64(event.ChannelID)
	guildID := uint64(event.GuildID)

	switch b.router.route(guildID, channelID, msg.Content) {
	case routeCommand:
		cmd, _ := commands.Parse(msg.Content, b.router.prefix)
		b.spawn("command", b.commandTimeout, func(ctx context.Context) {
			b.commands.Handle(ctx, commands.Request{
				Command:     cmd,
				ChannelID:   channelID,
				ModeratorID: uint64(msg.Author.ID),
				GuildID:     guildID,
			})
		})
	case routeClassify:
		var guildName, channelName string
		if guild, ok := event.Client().Caches().Guild(event.GuildID); ok {
			guildName = guild.Name
		}
		if channel, ok := event.Client().Caches().Channel(event.ChannelID); ok {
			channelName = channel.Name()
		}

		message := platform.ToMessage(msg, guildName, channelName)
		b.spawn("classify", b.requestTimeout, func(ctx context.Context) {
			b.classify(ctx, message)
		})
	case routeIgnore:
	}
}

func (b *Bot) classify(ctx context.Context, msg types.Message) {
	a := b.detector.Process(ctx, msg)
	if a.Skipped {
		return
	}

	b.logger.Debug("Message analyzed",
		zap.Uint64("user_id", msg.AuthorID),
		zap.Uint64("message_id", msg.ID),
		zap.Float64("grooming_probability", a.Result.GroomingProbability),
		zap.String("risk_level", string(a.Assessment.Level)))
}

// handleDirectMessage feeds the report dialog.
func (b *Bot) handleDirectMessage(event *events.DMMessageCreate) {
	msg := event.Message
	if msg.Author.Bot || msg.Author.System {
		return
	}

	channelID := uint64(event.ChannelID)
	userID := uint64(msg.Author.ID)

	b.spawn("direct_message", b.requestTimeout, func(ctx context.Context) {
		b.dialog.Handle(ctx, channelID, userID, msg.Content)
	})
}

// handleReaction resolves a pending moderator confirmation.
func (b *Bot) handleReaction(event *events.GuildMessageReactionAdd) {
	if event.Emoji.Name == nil {
		return
	}

	if b.waiter.Resolve(uint64(event.MessageID), uint64(event.UserID), *event.Emoji.Name) {
		b.logger.Debug("Confirmation answered",
			zap.Uint64("message_id", uint64(event.MessageID)),
			zap.String("emoji", *event.Emoji.Name))
	}
}

// spawn runs fn in its own goroutine with a timeout, recovering panics.
func (b *Bot) spawn(name string, timeout time.Duration, fn func(ctx context.Context)) {
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		ctx, cancel := context.WithTimeout(b.ctx, timeout)
		defer cancel()

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in event handler", zap.String("handler", name), zap.Any("panic", r))
			}
			b.logger.Debug("Event handled",
				zap.String("handler", name),
				zap.Duration("duration", time.Since(start)))
		}()

		fn(ctx)
	}()
}
