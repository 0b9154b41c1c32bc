package cmd

import (
	"context"
	"errors"
	"fmt"
	"github.com/LuisAlt810/Discord-ai-bot-set.up/slashbot"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"io"
	"net/http"
	"os"
	"time"
)

const stdoutPath = "-"

var (
	setupForm   = slashbot.DefaultSetupForm()
	setupOutput string
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Generate setup artifacts, or serve the setup API",
}

var setupEnvCmd = &cobra.Command{
	Use:          "env [flags]",
	Short:        "Generate a .env file from the given values",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		form := formWithConfigCredentials(setupForm, cfg)
		if err := form.Validate(); err != nil {
			return err
		}
		content, err := slashbot.GenerateEnvFile(form)
		if err != nil {
			return err
		}
		return writeArtifact(cmd.OutOrStdout(), setupOutput, content, 0o600)
	},
}

var setupScriptCmd = &cobra.Command{
	Use:          "script [flags]",
	Short:        "Generate a deploy script from the given values",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := setupForm.Validate(); err != nil {
			return err
		}
		content, err := slashbot.GenerateDeployScript(setupForm)
		if err != nil {
			return err
		}
		return writeArtifact(cmd.OutOrStdout(), setupOutput, content, 0o755)
	},
}

var setupServeCmd = &cobra.Command{
	Use:          "serve",
	Short:        "Serve the setup API, used by the browser setup form",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		api, err := slashbot.NewAPI(cfg.SetupAPI, cfg.Development)
		if err != nil {
			return err
		}
		return serveSetupAPI(cmd.Context(), api, cfg.ShutdownTimeout)
	},
}

// serveSetupAPI serves until ctx is done, then shuts the server down,
// allowing up to shutdownTimeout for in-flight requests
func serveSetupAPI(
	ctx context.Context,
	api *slashbot.API,
	shutdownTimeout time.Duration,
) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(
		func() error {
			if err := api.Serve(gctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	)
	g.Go(
		func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				shutdownTimeout,
			)
			defer cancel()
			return api.Shutdown(shutdownCtx)
		},
	)
	return g.Wait()
}

// formWithConfigCredentials fills in credentials missing from the form
// with the ones from the loaded config, so they don't have to be passed
// as flags
func formWithConfigCredentials(
	form slashbot.SetupForm,
	c *slashbot.Config,
) slashbot.SetupForm {
	if form.DiscordToken == "" && c.Discord != nil {
		form.DiscordToken = c.Discord.Token
	}
	if form.AIAPIKey == "" && c.AI != nil {
		form.AIAPIKey = c.AI.APIKey
	}
	return form
}

// writeArtifact writes content to path, or to w when path is "-"
func writeArtifact(w io.Writer, path string, content string, perm os.FileMode) error {
	if path == "" || path == stdoutPath {
		_, err := io.WriteString(w, content)
		return err
	}
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	_, err := fmt.Fprintf(w, "Wrote %s\n", path)
	return err
}

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.AddCommand(setupEnvCmd, setupScriptCmd, setupServeCmd)

	flags := setupCmd.PersistentFlags()
	flags.StringVarP(&setupOutput, "output", "o", stdoutPath, "File to write ('-' for stdout)")
	flags.StringVar(&setupForm.BotName, "bot-name", setupForm.BotName, "Bot name")
	flags.StringVar(
		&setupForm.BotDescription,
		"bot-description",
		setupForm.BotDescription,
		"Bot description",
	)
	flags.StringVar(&setupForm.BotPrefix, "bot-prefix", setupForm.BotPrefix, "Legacy command prefix")
	flags.StringVar(
		&setupForm.ActivityType,
		"activity-type",
		setupForm.ActivityType,
		"One of: playing, watching, listening, streaming, competing",
	)
	flags.StringVar(&setupForm.ActivityText, "activity-text", setupForm.ActivityText, "Activity text")
	flags.StringVar(
		&setupForm.PresenceStatus,
		"presence-status",
		setupForm.PresenceStatus,
		"One of: online, idle, dnd, invisible",
	)
	flags.BoolVar(&setupForm.MobileMode, "mobile", setupForm.MobileMode, "Show the mobile indicator")

	setupEnvCmd.Flags().StringVar(
		&setupForm.DiscordToken,
		"discord-token",
		"",
		"Discord bot token (defaults to DISCORD_TOKEN)",
	)
	setupEnvCmd.Flags().StringVar(
		&setupForm.AIAPIKey,
		"ai-api-key",
		"",
		"AI API key (defaults to AI_API_KEY)",
	)
}
