package cmd

import (
	"fmt"
	"github.com/LuisAlt810/Discord-ai-bot-set.up/slashbot"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"io"
)

const redacted = "[redacted]"

var configCmd = &cobra.Command{
	Use:          "config",
	Short:        "Print the effective configuration as YAML, with secrets redacted",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return writeConfigYAML(cmd.OutOrStdout(), cfg)
	},
}

func writeConfigYAML(w io.Writer, c *slashbot.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(redactedConfig(c)); err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	return enc.Close()
}

// redactedConfig returns a copy of c with credentials replaced. c is
// left untouched.
func redactedConfig(c *slashbot.Config) slashbot.Config {
	out := *c
	if c.Discord != nil {
		d := *c.Discord
		d.Token = redact(d.Token)
		out.Discord = &d
	}
	if c.AI != nil {
		ai := *c.AI
		ai.APIKey = redact(ai.APIKey)
		out.AI = &ai
	}
	return out
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}

func init() {
	rootCmd.AddCommand(configCmd)
}
