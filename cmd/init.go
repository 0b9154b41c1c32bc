package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"syscall"

	"github.com/LuisAlt810/Discord-ai-bot-set.up/slashbot"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// secretReader is a function type for reading tokens without echoing
// them. It's really only here to make testing easier.
type secretReader func() ([]byte, error)

var customSecretReader secretReader

var (
	initOutput string
	initForce  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create a .env file for the bot",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()

		if !initForce {
			if _, err := os.Stat(initOutput); err == nil {
				log.Fatalf("%s already exists (use --force to overwrite)", initOutput)
			}
		}

		if customSecretReader == nil {
			customSecretReader = func() ([]byte, error) {
				return term.ReadPassword(int(syscall.Stdin))
			}
		}

		form, err := promptSetupForm(
			bufio.NewReader(cmd.InOrStdin()),
			out,
			customSecretReader,
		)
		if err != nil {
			log.Fatalf("Error reading setup values: %v", err)
		}

		content, err := slashbot.GenerateEnvFile(form)
		if err != nil {
			log.Fatalf("Error generating env file: %v", err)
		}
		if err = os.WriteFile(initOutput, []byte(content), 0o600); err != nil {
			log.Fatalf("Error writing %s: %v", initOutput, err)
		}

		fmt.Fprintf(out, "Wrote %s\n", initOutput)
		fmt.Fprintln(
			out,
			"Initialization complete. You can now start the bot with the 'run' subcommand.",
		)
	},
}

// promptSetupForm asks for each setup value in turn. Secrets are read
// with readSecret, everything else from r. Empty answers keep the default.
func promptSetupForm(
	r *bufio.Reader,
	out io.Writer,
	readSecret secretReader,
) (slashbot.SetupForm, error) {
	form := slashbot.DefaultSetupForm()

	for {
		fmt.Fprint(out, "Enter Discord bot token: ")
		token, err := readSecret()
		fmt.Fprintln(out)
		if err != nil {
			return form, fmt.Errorf("error reading discord token: %w", err)
		}
		form.DiscordToken = strings.TrimSpace(string(token))
		err = slashbot.ValidateDiscordToken(form.DiscordToken)
		if err == nil {
			break
		}
		fmt.Fprintf(out, "%s. Please try again.\n", err)
	}

	fmt.Fprint(out, "Enter AI API key (optional, press enter to skip): ")
	key, err := readSecret()
	fmt.Fprintln(out)
	if err != nil {
		return form, fmt.Errorf("error reading AI API key: %w", err)
	}
	form.AIAPIKey = strings.TrimSpace(string(key))
	if form.AIAPIKey != "" {
		if err = slashbot.ValidateAIAPIKey(form.AIAPIKey); err != nil {
			fmt.Fprintf(out, "Warning: %s\n", err)
		}
	}

	prompts := []struct {
		label string
		value *string
	}{
		{"Bot name", &form.BotName},
		{"Bot description", &form.BotDescription},
		{"Command prefix", &form.BotPrefix},
		{"Activity type (playing, watching, listening, streaming, competing)", &form.ActivityType},
		{"Activity text", &form.ActivityText},
		{"Presence status (online, idle, dnd, invisible)", &form.PresenceStatus},
	}
	for _, p := range prompts {
		v, err := promptLine(r, out, p.label, *p.value)
		if err != nil {
			return form, err
		}
		*p.value = v
	}

	mobile, err := promptLine(r, out, "Show mobile indicator (y/N)", "n")
	if err != nil {
		return form, err
	}
	form.MobileMode = strings.HasPrefix(strings.ToLower(mobile), "y")

	if err = form.Validate(); err != nil {
		return form, err
	}
	return form, nil
}

// promptLine prints the label with its default, and returns the trimmed
// answer, or the default if the answer was empty
func promptLine(r *bufio.Reader, out io.Writer, label string, defaultValue string) (string, error) {
	fmt.Fprintf(out, "%s [%s]: ", label, defaultValue)
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("error reading %s: %w", label, err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return defaultValue, nil
	}
	return line, nil
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVarP(&initOutput, "output", "o", ".env", "File to write")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
}
