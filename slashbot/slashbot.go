package slashbot

import (
	"context"
	"errors"
	"fmt"
	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// When building, set these like:
	// -ldflags "-X github.com/LuisAlt810/Discord-ai-bot-set.up/slashbot.Version=$$(date +'%Y%m%d')"

	Version   = "dev"
	CommitSHA = "unknown"
	BuildTime = "unknown"
)

// BotIdentity describes the bot user, as reported by the first Ready
// event. It isn't updated afterward.
type BotIdentity struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GuildCount int    `json:"guild_count"`
	UserCount  int    `json:"user_count"`
}

// SlashBot is the bot: it connects to discord, publishes the slash
// command catalog, and dispatches incoming commands and legacy prefix
// messages to their handlers.
type SlashBot struct {
	config *Config

	// Standard logger. Component loggers have their own levels.
	logger *slog.Logger

	// Handles discord integration, sessions
	discord *Discord

	// Handles the chat completion API for /ai
	openai *OpenAI

	// Provides a webhook endpoint to use to receive Discord
	// interactions when the websocket/gateway isn't being used
	discordWebhookServer *DiscordWebhookServer

	// Slash command name -> handler
	handlers map[string]commandHandler

	identity     atomic.Pointer[BotIdentity]
	identityOnce sync.Once

	// commands are published at most once per process
	registerOnce sync.Once

	// tracks in-flight interaction/message handlers so shutdown can
	// wait on them
	handlerWG sync.WaitGroup

	// prevents Run from executing concurrently
	runMu sync.Mutex

	// the context passed to Run, used for handlers started outside of
	// Run's call stack (gateway events, webhook requests)
	runCtx   context.Context
	runCtxMu sync.RWMutex

	// signalReady has a value sent on it once Run has connected to
	// discord and/or started the webhook server
	signalReady chan struct{}

	now func() time.Time
}

// New creates a new SlashBot from the given config. The discord session
// is created, but not opened until Run is called.
func New(config *Config) (*SlashBot, error) {
	if config == nil || config.Bot == nil || config.Discord == nil || config.AI == nil {
		return nil, errors.New("bot, discord and ai config are required")
	}

	var errs []error

	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}

	b := &SlashBot{
		config:      config,
		signalReady: make(chan struct{}, 1),
		now:         time.Now,
	}

	b.logger = slog.New(newLogHandler(config.LogLevel))
	slog.SetDefault(b.logger)

	b.openai = newOpenAI(config.AI, config.HTTPClient)

	config.Discord.httpClient = config.HTTPClient

	disc, err := newDiscord(config.Discord)
	if err != nil {
		errs = append(errs, err)
		disc = &Discord{config: config.Discord}
	}

	discordgo.Logger = discordgoLoggerFunc(
		context.Background(),
		newLogHandler(config.Discord.DiscordGoLogLevel).WithAttrs(
			[]slog.Attr{slog.String(loggerNameKey, "discordgo")},
		),
	)
	disc.logger = newComponentLogger("discord", config.Discord.LogLevel)

	session, err := disc.newSession()
	if err != nil {
		errs = append(errs, err)
	}
	disc.session = session
	b.discord = disc

	b.handlers = b.commandHandlers()

	if config.Discord.WebhookServer.Enabled {
		webhookServer, e := newWebhookServer(b, config.Discord.WebhookServer)
		errs = append(errs, e)
		b.discordWebhookServer = webhookServer
	}

	return b, errors.Join(errs...)
}

func (b *SlashBot) ValidateConfig() error {
	return structValidator.Struct(b.config)
}

// Identity returns the bot user's identity, once the gateway has
// reported Ready
func (b *SlashBot) Identity() (BotIdentity, bool) {
	identity := b.identity.Load()
	if identity == nil {
		return BotIdentity{}, false
	}
	return *identity, true
}

// Ready returns a channel which receives a value once Run has finished
// starting up
func (b *SlashBot) Ready() <-chan struct{} {
	return b.signalReady
}

// RegisterCommands publishes the command catalog, replacing any commands
// previously registered for the application. This is a no-op if commands
// were already registered by this process.
func (b *SlashBot) RegisterCommands(appID string, options ...discordgo.RequestOption) error {
	var err error
	b.registerOnce.Do(
		func() {
			_, err = b.discord.registerCommands(appID, options...)
		},
	)
	return err
}

func (b *SlashBot) runtimeContext() context.Context {
	b.runCtxMu.RLock()
	defer b.runCtxMu.RUnlock()
	if b.runCtx == nil {
		return context.Background()
	}
	return b.runCtx
}

func (b *SlashBot) setRuntimeContext(ctx context.Context) {
	b.runCtxMu.Lock()
	defer b.runCtxMu.Unlock()
	b.runCtx = ctx
}

// Run connects to discord (and/or starts the webhook server) and handles
// commands until the context is cancelled, then shuts down gracefully.
func (b *SlashBot) Run(ctx context.Context) error {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	logger := b.logger

	if err := b.ValidateConfig(); err != nil {
		logger.Error("invalid config", tint.Err(err))
		return err
	}

	ctx = WithLogger(ctx, logger)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	b.setRuntimeContext(ctx)

	logger.LogAttrs(ctx, slog.LevelInfo, "starting", slog.Any("config", b.config))
	if !b.openai.Configured() {
		logger.WarnContext(ctx, "AI API key not found - AI features will be disabled")
	}

	b.addHandlers(ctx)

	g, gctx := errgroup.WithContext(ctx)

	if b.discordWebhookServer != nil {
		g.Go(
			func() error {
				err := b.discordWebhookServer.Serve(gctx)
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.ErrorContext(gctx, "error serving webhook HTTP", tint.Err(err))
					return err
				}
				return nil
			},
		)
	}

	switch {
	case b.config.Discord.GatewayEnabled:
		if b.config.Discord.Presence.Mobile {
			b.discord.session.SetClientBrowser(mobileClientBrowser)
		}
		if err := b.openGateway(ctx); err != nil {
			logger.ErrorContext(ctx, "error connecting to discord", tint.Err(err))
			cancel()
			return errors.Join(err, b.shutdown(g))
		}
	case b.discordWebhookServer != nil:
		logger.WarnContext(ctx, "discord gateway disabled, presence and prefix commands are unavailable")
		if err := b.RegisterCommands(b.config.Discord.ApplicationID); err != nil {
			logger.ErrorContext(ctx, "error registering commands", tint.Err(err))
		}
	default:
		logger.WarnContext(ctx, "discord gateway and webhook server disabled")
	}

	select {
	case b.signalReady <- struct{}{}:
	default:
	}
	logger.InfoContext(ctx, "sent ready signal")

	// block until something cancels the runtime context, generally an
	// interrupt, or the webhook server failing
	<-gctx.Done()
	cancel()

	return b.shutdown(g)
}

// openGateway opens the websocket connection, failing if it doesn't
// connect within the configured startup timeout
func (b *SlashBot) openGateway(ctx context.Context) error {
	startCtx := ctx
	if b.config.StartupTimeout > 0 {
		var startCancel context.CancelFunc
		startCtx, startCancel = context.WithTimeout(ctx, b.config.StartupTimeout)
		defer startCancel()
	}

	b.logger.InfoContext(ctx, "connecting to discord")
	openErr := make(chan error, 1)
	go func() {
		openErr <- b.discord.session.Open()
	}()

	select {
	case <-startCtx.Done():
		return fmt.Errorf("startup cancelled or timed out: %w", startCtx.Err())
	case err := <-openErr:
		if err != nil {
			return fmt.Errorf("error connecting to discord: %w", err)
		}
	}
	return nil
}

// addHandlers registers the discord gateway event handlers
func (b *SlashBot) addHandlers(ctx context.Context) {
	session := b.discord.session
	b.discord.discordgoRemoveHandlerFuncs = append(
		b.discord.discordgoRemoveHandlerFuncs,
		session.AddHandler(b.handlerReady(ctx)),
		session.AddHandler(b.discord.handlerConnect()),
		session.AddHandler(b.discord.handlerDisconnect()),
		session.AddHandler(b.handlerInteractionCreate(ctx)),
		session.AddHandler(b.handlerMessageCreate(ctx)),
	)
}

func (b *SlashBot) handlerReady(ctx context.Context) func(
	s *discordgo.Session,
	r *discordgo.Ready,
) {
	return func(_ *discordgo.Session, r *discordgo.Ready) {
		b.onReady(ctx, r)
	}
}

// onReady records the bot's identity, applies the current presence, and
// publishes the command catalog (once per process)
func (b *SlashBot) onReady(ctx context.Context, r *discordgo.Ready) {
	logger := b.discord.logger

	var userID, username string
	if r.User != nil {
		userID = r.User.ID
		username = r.User.Username
	}

	b.identityOnce.Do(
		func() {
			identity := &BotIdentity{
				ID:         userID,
				Username:   username,
				GuildCount: len(r.Guilds),
			}
			for _, g := range r.Guilds {
				if g != nil {
					identity.UserCount += g.MemberCount
				}
			}
			b.identity.Store(identity)
			logger.InfoContext(
				ctx,
				fmt.Sprintf("%s is online", b.config.Bot.Name),
				"session_id", r.SessionID,
				slog.Group(
					"user",
					"id", identity.ID,
					"username", identity.Username,
				),
				"guilds", identity.GuildCount,
				"users", identity.UserCount,
			)
		},
	)

	appID := b.config.Discord.ApplicationID
	if appID == "" {
		appID = userID
	}

	// the first Ready is dispatched from within session.Open, while the
	// session lock is held, so anything touching the session has to wait
	// for Open to return
	b.handlerWG.Add(1)
	go func() {
		defer b.handlerWG.Done()
		if _, err := b.discord.applyPresence(b.discord.currentPresence()); err != nil {
			logger.ErrorContext(ctx, "error setting initial presence", tint.Err(err))
		}
		if err := b.RegisterCommands(appID, discordgo.WithContext(ctx)); err != nil {
			logger.ErrorContext(ctx, "error registering commands", tint.Err(err))
		}
	}()
}

func (b *SlashBot) handlerInteractionCreate(ctx context.Context) func(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
) {
	return func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		handler := GatewayHandler{
			session:     b.discord.session,
			interaction: i,
			logger:      b.discord.logger,
		}
		b.handlerWG.Add(1)
		go func() {
			defer b.handlerWG.Done()
			b.handleInteraction(ctx, handler)
		}()
	}
}

func (b *SlashBot) handlerMessageCreate(ctx context.Context) func(
	s *discordgo.Session,
	m *discordgo.MessageCreate,
) {
	return func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		b.handlerWG.Add(1)
		go func() {
			defer b.handlerWG.Done()
			b.handleDiscordMessage(ctx, m)
		}()
	}
}

// shutdown closes the discord connection and webhook server, then waits
// up to Config.ShutdownTimeout for in-flight handlers to finish.
func (b *SlashBot) shutdown(g *errgroup.Group) error {
	logger := b.logger
	logger.Info("shutting down")

	shutdownCtx := context.Background()
	if b.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, b.config.ShutdownTimeout)
		defer cancel()
	}

	var errs []error

	if b.discordWebhookServer != nil {
		if err := b.discordWebhookServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down webhook server", tint.Err(err))
			errs = append(errs, err)
		}
	}

	if b.config.Discord.GatewayEnabled {
		if err := b.discord.session.Close(); err != nil {
			logger.Error("error closing discord session", tint.Err(err))
		}
	}
	for _, removeHandler := range b.discord.discordgoRemoveHandlerFuncs {
		removeHandler()
	}
	b.discord.discordgoRemoveHandlerFuncs = nil

	handlersDone := make(chan struct{})
	go func() {
		b.handlerWG.Wait()
		close(handlersDone)
	}()
	select {
	case <-handlersDone:
		logger.Info("handlers finished")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out waiting on handlers")
	}

	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}

	logger.Info("shutdown complete")
	return errors.Join(errs...)
}
