//nolint:lll // struct tags can't be split
package slashbot

import (
	"crypto/tls"
	"github.com/bwmarrin/discordgo"
	"github.com/gin-contrib/cors"
	"log/slog"
	"net/http"
	"time"
)

const (
	EnvvarSetEnvPrefix = "SLASHBOT_ENV_PREFIX"
	DefaultEnvPrefix   = ""

	DefaultLogLevel        = slog.LevelInfo
	DefaultStartupTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 60 * time.Second

	DefaultBotName        = "AI Assistant Bot"
	DefaultBotDescription = "An intelligent Discord bot powered by AI that can help with various tasks"
	DefaultBotPrefix      = "!"

	DefaultDiscordLogLevel          = slog.LevelWarn
	DefaultDiscordgoLogLevel        = slog.LevelWarn
	DefaultDiscordGatewayIntent     = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent | discordgo.IntentsGuildMembers
	DefaultDiscordGatewayEnabled    = true
	DefaultPresenceActivityKind     = activityPlaying
	DefaultPresenceActivityText     = "with slash commands"
	DefaultPresenceOnlineStatus     = string(discordgo.StatusOnline)
	DefaultDiscordWebhookLogLevel   = slog.LevelInfo
	DefaultDiscordWebhookListen     = "127.0.0.1:5001"
	DefaultDiscordWebhookTLSVersion = tls.VersionTLS12

	DefaultAIBaseURL        = "https://api.groq.com/openai/v1"
	DefaultAIModel          = "llama3-8b-8192"
	DefaultAIMaxTokens      = 250
	DefaultAITemperature    = float32(0.7)
	DefaultAISystemPrompt   = "You are a helpful Discord bot assistant. Keep responses concise and friendly."
	DefaultAIRequestTimeout = 60 * time.Second
	DefaultAILogLevel       = slog.LevelInfo

	DefaultSetupAPIListen   = "127.0.0.1:5000"
	DefaultSetupAPILogLevel = slog.LevelInfo

	DefaultReadTimeout       = 5 * time.Second
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultIdleTimeout       = 30 * time.Second

	defaultListenNetwork    = "tcp"
	discordMaxMessageLength = 2000
)

var (
	DefaultCORSAllowMethods = []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodOptions,
		http.MethodHead,
	}
	DefaultCORSAllowHeaders = []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		"Accept",
		xRequestIDHeader,
	}
	DefaultCORSExposeHeaders = []string{
		"Content-Type",
		"Content-Length",
		"Content-Disposition",
		xRequestIDHeader,
	}
	DefaultCORSMaxAge = 12 * time.Hour
)

type Config struct {
	// LogLevel is the base log level, for the default logger
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// Development switches gin into debug mode and relaxes CORS
	Development bool `yaml:"development" mapstructure:"development" json:"development"`

	// StartupTimeout limits how long opening the gateway connection may take.
	StartupTimeout time.Duration `yaml:"startup_timeout" mapstructure:"startup_timeout" json:"startup_timeout"`

	// ShutdownTimeout is the time to allow for a graceful shutdown. After this
	// elapses, in-flight handlers are abandoned and the bot exits.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" json:"shutdown_timeout"`

	// Bot holds the bot's display name, help text and legacy command prefix
	Bot *BotConfig `yaml:"bot" mapstructure:"bot" json:"bot" binding:"required"`

	// Discord configures aspects of the Discord bot itself
	Discord *DiscordConfig `yaml:"discord" mapstructure:"discord" json:"discord" binding:"required"`

	// AI configures the chat completion endpoint used by /ai
	AI *AIConfig `yaml:"ai" mapstructure:"ai" json:"ai" binding:"required"`

	// SetupAPI configures the optional setup HTTP API
	SetupAPI *SetupAPIConfig `yaml:"setup_api" mapstructure:"setup_api" json:"setup_api"`

	HTTPClient *http.Client `yaml:"-" json:"-" log:"[redacted]"`
}

func (c Config) LogValue() slog.Value {
	return structToSlogValue(c)
}

// BotConfig holds the user-facing identity of the bot.
type BotConfig struct {
	Name        string `yaml:"name" mapstructure:"name" json:"name" binding:"required"`
	Description string `yaml:"description" mapstructure:"description" json:"description"`

	// Prefix for legacy plain-text commands, ex: "!ping"
	Prefix string `yaml:"prefix" mapstructure:"prefix" json:"prefix" binding:"required,max=3"`
}

// DiscordConfig configures the discord bot itself.
//
//nolint:lll // can't break tags
type DiscordConfig struct {
	// Discord bot token (from the 'Bot' tab in the discord dev portal)
	Token string `yaml:"token" mapstructure:"token" json:"token" log:"[redacted]" binding:"required"`

	// Discord application ID. Optional when the gateway is enabled, since
	// the bot user ID from the Ready event is used instead.
	ApplicationID string `yaml:"application_id" mapstructure:"application_id" json:"application_id" binding:"required_if=GatewayEnabled false"`

	// GuildID specifies the guild ID used when registering slash commands.
	// Leave empty for commands to be registered as global.
	GuildID string `yaml:"guild_id" mapstructure:"guild_id" json:"guild_id"`

	// GatewayEnabled controls whether a websocket gateway connection is
	// opened. Presence updates and prefix commands need the gateway.
	GatewayEnabled bool `yaml:"gateway_enabled" mapstructure:"gateway_enabled" json:"gateway_enabled"`

	// Base discord logging level
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// Log level for the `discordgo` library's logger
	DiscordGoLogLevel *slog.LevelVar `yaml:"discordgo_log_level" mapstructure:"discordgo_log_level" json:"discordgo_log_level"`

	// Discord gateway intents. See: https://discord.com/developers/docs/topics/gateway#gateway-intents
	GatewayIntents discordgo.Intent `yaml:"gateway_intents" mapstructure:"gateway_intents" json:"gateway_intents"`

	// Presence is applied when the gateway reports Ready
	Presence PresenceConfig `yaml:"presence" mapstructure:"presence" json:"presence"`

	// Receives interactions over HTTP rather than the gateway
	WebhookServer DiscordWebhookServerConfig `yaml:"webhook_server" mapstructure:"webhook_server" json:"webhook_server"`

	httpClient *http.Client
}

// DiscordWebhookServerConfig represents the configuration for the Discord webhook server.
//
// This struct defines the settings required to run a server that handles Discord
// webhook interactions. It includes options for enabling the server, specifying
// network details, SSL configuration, logging, and various timeouts.
type DiscordWebhookServerConfig struct {
	// Determines if the webhook server should be active.
	Enabled bool `yaml:"enabled" mapstructure:"enabled" json:"enabled"`

	// The address and port on which the server should listen (e.g., "127.0.0.1:5001").
	Listen string `yaml:"listen" mapstructure:"listen" json:"listen" binding:"required_if=Enabled true"`

	// The network type for listening (e.g., "tcp", "tcp4", "tcp6", "unix").
	ListenNetwork string `yaml:"listen_network" mapstructure:"listen_network" json:"listen_network" binding:"required_if=Enabled true,omitempty,oneof=tcp tcp4 tcp6 unix"`

	// Configuration for SSL/TLS.
	SSL SSLConfig `yaml:"ssl" mapstructure:"ssl" json:"ssl"`

	// The public key used for verifying Discord interaction POST requests.
	// In the Discord dev portal for your bot, this is under 'General Information'
	PublicKey string `yaml:"public_key" mapstructure:"public_key" json:"public_key" binding:"required_if=Enabled true"`

	// The logging level for the webhook server.
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// Maximum duration for reading the entire request, including the body.
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" json:"read_timeout"`

	// Amount of time allowed to read request headers.
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" mapstructure:"read_header_timeout" json:"read_header_timeout"`

	// Maximum duration before timing out writes of the response.
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" json:"write_timeout"`

	// Maximum amount of time to wait for the next request when keep-alives are enabled.
	IdleTimeout time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" json:"idle_timeout"`
}

// AIConfig configures the OpenAI-compatible chat completion endpoint
type AIConfig struct {
	// API key. When empty, /ai replies with a 'not configured' message.
	APIKey string `yaml:"api_key" mapstructure:"api_key" json:"api_key" log:"[redacted]"`

	// Base URL of the OpenAI-compatible API (Groq by default)
	BaseURL string `yaml:"base_url" mapstructure:"base_url" json:"base_url" binding:"required,url"`

	Model        string  `yaml:"model" mapstructure:"model" json:"model" binding:"required"`
	MaxTokens    int     `yaml:"max_tokens" mapstructure:"max_tokens" json:"max_tokens" binding:"gte=1"`
	Temperature  float32 `yaml:"temperature" mapstructure:"temperature" json:"temperature" binding:"gte=0,lte=2"`
	SystemPrompt string  `yaml:"system_prompt" mapstructure:"system_prompt" json:"system_prompt"`

	// RequestTimeout bounds a single completion request. 0 disables it.
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout" json:"request_timeout" binding:"gte=0"`

	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`
}

// SetupAPIConfig configures the HTTP API used by the setup form
type SetupAPIConfig struct {
	// The address and port on which the server should listen (e.g., "127.0.0.1:5000").
	Listen string `yaml:"listen" mapstructure:"listen" json:"listen"`

	// The logging level for the setup API server.
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// Cross-origin configuration
	CORS CORSConfig `yaml:"cors" mapstructure:"cors" json:"cors"`

	ReadTimeout       time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" json:"read_timeout"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" mapstructure:"read_header_timeout" json:"read_header_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" json:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" json:"idle_timeout"`
}

// SSLConfig specifies cert paths and the TLS version to use
type SSLConfig struct {
	// Path to an SSL certificate
	Cert string `yaml:"cert" mapstructure:"cert" json:"cert"`

	// Path to an SSL cert key
	Key string `yaml:"key" mapstructure:"key" json:"key"`

	// Minimum TLS version
	TLSMinVersion uint16 `yaml:"tls_min_version" mapstructure:"tls_min_version" json:"tls_min_version"`
}

// CORSConfig specifies cross-origin resource sharing settings
type CORSConfig struct {
	AllowOrigins     []string      `yaml:"allow_origins" mapstructure:"allow_origins" json:"allow_origins"`
	AllowMethods     []string      `yaml:"allow_methods" mapstructure:"allow_methods" json:"allow_methods"`
	AllowHeaders     []string      `yaml:"allow_headers" mapstructure:"allow_headers" json:"allow_headers"`
	ExposeHeaders    []string      `yaml:"expose_headers" mapstructure:"expose_headers" json:"expose_headers"`
	AllowCredentials bool          `yaml:"allow_credentials" mapstructure:"allow_credentials" json:"allow_credentials"`
	MaxAge           time.Duration `yaml:"max_age" mapstructure:"max_age" json:"max_age"`
}

func (c CORSConfig) GINConfig() cors.Config {
	return cors.Config{
		AllowOrigins:     c.AllowOrigins,
		AllowMethods:     c.AllowMethods,
		AllowHeaders:     c.AllowHeaders,
		MaxAge:           c.MaxAge,
		ExposeHeaders:    c.ExposeHeaders,
		AllowCredentials: c.AllowCredentials,
	}
}

func DefaultCORSConfig() CORSConfig {
	defaultMethods := make([]string, len(DefaultCORSAllowMethods))
	copy(defaultMethods, DefaultCORSAllowMethods)

	defaultHeaders := make([]string, len(DefaultCORSAllowHeaders))
	copy(defaultHeaders, DefaultCORSAllowHeaders)

	defaultExpose := make([]string, len(DefaultCORSExposeHeaders))
	copy(defaultExpose, DefaultCORSExposeHeaders)

	return CORSConfig{
		AllowOrigins:  []string{},
		AllowMethods:  defaultMethods,
		AllowHeaders:  defaultHeaders,
		ExposeHeaders: defaultExpose,
		MaxAge:        DefaultCORSMaxAge,
	}
}

// DefaultConfig returns a Config with all default settings populated
func DefaultConfig() *Config {
	mainLogLevel := &slog.LevelVar{}
	aiLogLevel := &slog.LevelVar{}
	discordLogLevel := &slog.LevelVar{}
	discordgoLogLevel := &slog.LevelVar{}
	discordWebhookLogLevel := &slog.LevelVar{}
	setupAPILogLevel := &slog.LevelVar{}

	mainLogLevel.Set(DefaultLogLevel)
	aiLogLevel.Set(DefaultAILogLevel)
	discordLogLevel.Set(DefaultDiscordLogLevel)
	discordgoLogLevel.Set(DefaultDiscordgoLogLevel)
	discordWebhookLogLevel.Set(DefaultDiscordWebhookLogLevel)
	setupAPILogLevel.Set(DefaultSetupAPILogLevel)

	return &Config{
		LogLevel:        mainLogLevel,
		StartupTimeout:  DefaultStartupTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		Bot: &BotConfig{
			Name:        DefaultBotName,
			Description: DefaultBotDescription,
			Prefix:      DefaultBotPrefix,
		},
		Discord: &DiscordConfig{
			GatewayEnabled:    DefaultDiscordGatewayEnabled,
			GatewayIntents:    DefaultDiscordGatewayIntent,
			LogLevel:          discordLogLevel,
			DiscordGoLogLevel: discordgoLogLevel,
			Presence: PresenceConfig{
				ActivityKind: DefaultPresenceActivityKind,
				ActivityText: DefaultPresenceActivityText,
				OnlineStatus: DefaultPresenceOnlineStatus,
			},
			WebhookServer: DiscordWebhookServerConfig{
				Listen:        DefaultDiscordWebhookListen,
				ListenNetwork: defaultListenNetwork,
				SSL: SSLConfig{
					TLSMinVersion: DefaultDiscordWebhookTLSVersion,
				},
				LogLevel:          discordWebhookLogLevel,
				ReadTimeout:       DefaultReadTimeout,
				ReadHeaderTimeout: DefaultReadHeaderTimeout,
				WriteTimeout:      DefaultWriteTimeout,
				IdleTimeout:       DefaultIdleTimeout,
			},
		},
		AI: &AIConfig{
			BaseURL:        DefaultAIBaseURL,
			Model:          DefaultAIModel,
			MaxTokens:      DefaultAIMaxTokens,
			Temperature:    DefaultAITemperature,
			SystemPrompt:   DefaultAISystemPrompt,
			RequestTimeout: DefaultAIRequestTimeout,
			LogLevel:       aiLogLevel,
		},
		SetupAPI: &SetupAPIConfig{
			Listen:            DefaultSetupAPIListen,
			LogLevel:          setupAPILogLevel,
			CORS:              DefaultCORSConfig(),
			ReadTimeout:       DefaultReadTimeout,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			WriteTimeout:      DefaultWriteTimeout,
			IdleTimeout:       DefaultIdleTimeout,
		},
	}
}
