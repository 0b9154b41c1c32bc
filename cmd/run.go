package cmd

import (
	"fmt"
	"github.com/LuisAlt810/Discord-ai-bot-set.up/slashbot"
	"github.com/spf13/cobra"
	"io"
	"log"
	"os"
)

const missingTokenInstructions = `DISCORD_TOKEN is not set.

To get started:
  1. Create an application at https://discord.com/developers/applications
  2. Under 'Bot', reset and copy the bot token
  3. Run 'slashbot init' to write a .env file, or set DISCORD_TOKEN
     (and optionally AI_API_KEY) in your environment
  4. Run 'slashbot run' again
`

var (
	runCmd = &cobra.Command{
		Use:   "run [flags]",
		Short: "Starts the bot (gateway and/or webhook server)",
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()

			if !tokenConfigured(cfg, cmd.ErrOrStderr()) {
				os.Exit(1)
			}

			bot, err := slashbot.New(cfg)
			if err != nil {
				log.Fatalf("error creating bot: %s", err.Error())
			}

			if err = bot.Run(ctx); err != nil {
				log.Fatalf("error running bot: %s", err.Error())
			}
		},
	}
)

// tokenConfigured reports whether a discord token is set, printing setup
// instructions to w when it isn't
func tokenConfigured(c *slashbot.Config, w io.Writer) bool {
	if c.Discord != nil && c.Discord.Token != "" {
		return true
	}
	_, _ = fmt.Fprint(w, missingTokenInstructions)
	return false
}

//goland:noinspection GoLinter
func init() {
	rootCmd.AddCommand(runCmd)
}
