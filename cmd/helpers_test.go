package cmd

import (
	"errors"
	"github.com/LuisAlt810/Discord-ai-bot-set.up/slashbot"
	"github.com/spf13/viper"
	"os"
	"strings"
	"testing"
)

const (
	testDiscordToken = "MTIzNDU2Nzg5MDEyMzQ1Njc4.GabcDE.abcdefghijklmnopqrstuvwxyz0123456789ABCD"
	testAIAPIKey     = "gsk_abcdefghijklmnopqrstuvwxyz"
)

var errNoMoreSecrets = errors.New("no more secrets")

// isolateConfig clears the environment, viper and the package config,
// restoring the environment when the test finishes
func isolateConfig(t testing.TB) {
	t.Helper()

	originalEnv := os.Environ()
	t.Cleanup(
		func() {
			os.Clearenv()
			for _, envVar := range originalEnv {
				parts := strings.SplitN(envVar, "=", 2)
				_ = os.Setenv(parts[0], parts[1])
			}
			viper.Reset()
			cfg = slashbot.DefaultConfig()
			configFile = ""
			rootCmd.SetArgs(nil)
			rootCmd.SetIn(nil)
			rootCmd.SetOut(nil)
			rootCmd.SetErr(nil)
		},
	)

	os.Clearenv()
	viper.Reset()
	cfg = slashbot.DefaultConfig()
}

// secretQueue returns a secretReader which returns each of the given
// values in order, then an error
func secretQueue(values ...string) secretReader {
	idx := 0
	return func() ([]byte, error) {
		if idx >= len(values) {
			return nil, errNoMoreSecrets
		}
		v := values[idx]
		idx++
		return []byte(v), nil
	}
}
