package cmd

import (
	"context"
	"fmt"
	"github.com/LuisAlt810/Discord-ai-bot-set.up/slashbot"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"
)

var (
	cfg        = slashbot.DefaultConfig()
	configFile string
)

// levelKeys are the config keys holding a log level, which are converted
// from strings to *slog.LevelVar before unmarshalling
var levelKeys = []string{
	"log_level",
	"discord.log_level",
	"discord.discordgo_log_level",
	"discord.webhook_server.log_level",
	"ai.log_level",
	"setup_api.log_level",
}

// sliceKeys are space-separated when set from the environment
var sliceKeys = []string{
	"setup_api.cors.allow_origins",
	"setup_api.cors.allow_methods",
	"setup_api.cors.allow_headers",
	"setup_api.cors.expose_headers",
}

var rootCmd = &cobra.Command{
	Use:   "slashbot [flags]",
	Short: "Discord bot with slash commands, AI answers and presence control",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := unmarshalConfig(cfg); err != nil {
			log.Fatalln(err)
		}
	},
}

// unmarshalConfig decodes the current viper settings onto the given config
func unmarshalConfig(c *slashbot.Config) error {
	return viper.Unmarshal(
		c,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				LevelToStringHookFunc(),
			),
		),
		// slices are replaced rather than merged with the defaults
		func(dc *mapstructure.DecoderConfig) {
			dc.ZeroFields = true
		},
	)
}

func getLogLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(level) {
	case slog.LevelDebug.String():
		return slog.LevelDebug, nil
	case slog.LevelInfo.String():
		return slog.LevelInfo, nil
	case slog.LevelWarn.String():
		return slog.LevelWarn, nil
	case slog.LevelError.String():
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

// LevelToStringHookFunc decodes level strings (ex: "INFO") into
// *slog.LevelVar fields
func LevelToStringHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data any,
	) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t.Kind() != reflect.Ptr {
			return data, nil
		}

		typ := t.Elem()

		if typ != reflect.TypeOf(slog.LevelVar{}) {
			return data, nil
		}
		lvl, err := getLogLevel(data.(string))
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %s", data)
		}
		lvlVar := &slog.LevelVar{}
		lvlVar.Set(lvl)
		return lvlVar, nil
	}
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	rootCmd.SetContext(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(
		signals,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer func() {
		signal.Stop(signals)
		cancel()
	}()
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			//
		}
	}()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig() {
	if configFile == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found")
		}
	} else {
		log.Println("loading env from file", configFile)
		if err := godotenv.Load(configFile); err != nil {
			log.Printf("error loading %s: %v", configFile, err)
		}
	}

	setDefaults()

	envPrefix := os.Getenv(slashbot.EnvvarSetEnvPrefix)
	if envPrefix == "" {
		envPrefix = slashbot.DefaultEnvPrefix
	}
	viper.SetEnvPrefix(envPrefix)

	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	for _, k := range sliceKeys {
		viper.Set(k, viper.GetStringSlice(k))
	}

	for _, k := range levelKeys {
		logLevelVar, err := levelStringToLevelVar(viper.GetString(k))
		if err != nil {
			log.Fatalf("error parsing %s: %v", k, err)
		}
		viper.Set(k, logLevelVar)
	}
}

// setDefaults registers every config key with viper, so each can be
// overridden from the environment
func setDefaults() {
	defaults := slashbot.DefaultConfig()

	viper.SetDefault("log_level", slashbot.DefaultLogLevel.String())
	viper.SetDefault("development", false)
	viper.SetDefault("startup_timeout", slashbot.DefaultStartupTimeout)
	viper.SetDefault("shutdown_timeout", slashbot.DefaultShutdownTimeout)

	// Bot
	viper.SetDefault("bot.name", slashbot.DefaultBotName)
	viper.SetDefault("bot.description", slashbot.DefaultBotDescription)
	viper.SetDefault("bot.prefix", slashbot.DefaultBotPrefix)

	// Discord
	viper.SetDefault("discord.token", "")
	viper.SetDefault("discord.application_id", "")
	viper.SetDefault("discord.guild_id", "")
	viper.SetDefault("discord.gateway_enabled", slashbot.DefaultDiscordGatewayEnabled)
	viper.SetDefault("discord.gateway_intents", slashbot.DefaultDiscordGatewayIntent)
	viper.SetDefault("discord.log_level", slashbot.DefaultDiscordLogLevel.String())
	viper.SetDefault(
		"discord.discordgo_log_level",
		slashbot.DefaultDiscordgoLogLevel.String(),
	)

	// Discord: presence
	viper.SetDefault("discord.presence.activity_kind", slashbot.DefaultPresenceActivityKind)
	viper.SetDefault("discord.presence.activity_text", slashbot.DefaultPresenceActivityText)
	viper.SetDefault("discord.presence.online_status", slashbot.DefaultPresenceOnlineStatus)
	viper.SetDefault("discord.presence.mobile", false)

	// Discord: webhook server
	webhook := defaults.Discord.WebhookServer
	viper.SetDefault("discord.webhook_server.enabled", false)
	viper.SetDefault("discord.webhook_server.listen", slashbot.DefaultDiscordWebhookListen)
	viper.SetDefault("discord.webhook_server.listen_network", webhook.ListenNetwork)
	viper.SetDefault("discord.webhook_server.public_key", "")
	viper.SetDefault(
		"discord.webhook_server.log_level",
		slashbot.DefaultDiscordWebhookLogLevel.String(),
	)
	viper.SetDefault("discord.webhook_server.read_timeout", slashbot.DefaultReadTimeout)
	viper.SetDefault(
		"discord.webhook_server.read_header_timeout",
		slashbot.DefaultReadHeaderTimeout,
	)
	viper.SetDefault("discord.webhook_server.write_timeout", slashbot.DefaultWriteTimeout)
	viper.SetDefault("discord.webhook_server.idle_timeout", slashbot.DefaultIdleTimeout)
	viper.SetDefault("discord.webhook_server.ssl.cert", "")
	viper.SetDefault("discord.webhook_server.ssl.key", "")
	viper.SetDefault(
		"discord.webhook_server.ssl.tls_min_version",
		slashbot.DefaultDiscordWebhookTLSVersion,
	)

	// AI
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.base_url", slashbot.DefaultAIBaseURL)
	viper.SetDefault("ai.model", slashbot.DefaultAIModel)
	viper.SetDefault("ai.max_tokens", slashbot.DefaultAIMaxTokens)
	viper.SetDefault("ai.temperature", slashbot.DefaultAITemperature)
	viper.SetDefault("ai.system_prompt", slashbot.DefaultAISystemPrompt)
	viper.SetDefault("ai.request_timeout", slashbot.DefaultAIRequestTimeout)
	viper.SetDefault("ai.log_level", slashbot.DefaultAILogLevel.String())

	// Setup API
	viper.SetDefault("setup_api.listen", slashbot.DefaultSetupAPIListen)
	viper.SetDefault("setup_api.log_level", slashbot.DefaultSetupAPILogLevel.String())
	viper.SetDefault("setup_api.read_timeout", slashbot.DefaultReadTimeout)
	viper.SetDefault("setup_api.read_header_timeout", slashbot.DefaultReadHeaderTimeout)
	viper.SetDefault("setup_api.write_timeout", slashbot.DefaultWriteTimeout)
	viper.SetDefault("setup_api.idle_timeout", slashbot.DefaultIdleTimeout)

	// Setup API: CORS
	viper.SetDefault("setup_api.cors.allow_origins", []string{})
	viper.SetDefault("setup_api.cors.allow_methods", slashbot.DefaultCORSAllowMethods)
	viper.SetDefault("setup_api.cors.allow_headers", slashbot.DefaultCORSAllowHeaders)
	viper.SetDefault("setup_api.cors.expose_headers", slashbot.DefaultCORSExposeHeaders)
	viper.SetDefault("setup_api.cors.allow_credentials", false)
	viper.SetDefault("setup_api.cors.max_age", slashbot.DefaultCORSMaxAge)
}

func levelStringToLevelVar(lvl string) (*slog.LevelVar, error) {
	level := &slog.LevelVar{}
	err := level.UnmarshalText([]byte(lvl))
	return level, err
}

//goland:noinspection GoLinter,GoLinter
func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&configFile,
		"config",
		"",
		"Env file to load",
	)
}
