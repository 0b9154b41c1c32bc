package slashbot

import (
	_ "embed"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"regexp"
	"strings"
	"text/template"
)

const (
	discordTokenMinLength = 50
	aiAPIKeyMinLength     = 20
	aiAPIKeyPrefix        = "gsk_"
	botPrefixMaxLength    = 3

	// aiAPIKeyPlaceholder is written to generated env files when no
	// AI key was provided
	aiAPIKeyPlaceholder = "your_groq_api_key_here"
)

var (
	ErrDiscordTokenRequired = errors.New("discord token is required")
	ErrInvalidDiscordToken  = errors.New("invalid discord token format")
	ErrInvalidAIAPIKey      = errors.New("invalid AI API key format - should start with gsk_")
	ErrInvalidBotPrefix     = fmt.Errorf("bot prefix must be at most %d characters", botPrefixMaxLength)
)

var (
	//go:embed templates/env.tmpl
	envFileTemplateText string

	//go:embed templates/deploy.sh.tmpl
	deployScriptTemplateText string

	envFileTemplate      = template.Must(template.New("env").Parse(envFileTemplateText))
	deployScriptTemplate = template.Must(
		template.New("deploy").Funcs(
			template.FuncMap{"projectName": projectName},
		).Parse(deployScriptTemplateText),
	)

	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]`)
)

// SetupForm holds the values used to generate a bot's env file and
// deploy script. Values are substituted verbatim.
type SetupForm struct {
	BotName        string `json:"bot_name" yaml:"bot_name" mapstructure:"bot_name"`
	BotDescription string `json:"bot_description" yaml:"bot_description" mapstructure:"bot_description"`
	BotPrefix      string `json:"bot_prefix" yaml:"bot_prefix" mapstructure:"bot_prefix"`
	ActivityType   string `json:"activity_type" yaml:"activity_type" mapstructure:"activity_type" binding:"omitempty,oneof=playing watching listening streaming competing"`
	ActivityText   string `json:"activity_text" yaml:"activity_text" mapstructure:"activity_text"`
	PresenceStatus string `json:"presence_status" yaml:"presence_status" mapstructure:"presence_status" binding:"omitempty,oneof=online idle dnd invisible"`
	MobileMode     bool   `json:"mobile_mode" yaml:"mobile_mode" mapstructure:"mobile_mode"`
	DiscordToken   string `json:"discord_token" yaml:"discord_token" mapstructure:"discord_token" log:"[redacted]"`
	AIAPIKey       string `json:"ai_api_key" yaml:"ai_api_key" mapstructure:"ai_api_key" log:"[redacted]"`
}

// DefaultSetupForm returns a form populated with the bot defaults
func DefaultSetupForm() SetupForm {
	return SetupForm{
		BotName:        DefaultBotName,
		BotDescription: DefaultBotDescription,
		BotPrefix:      DefaultBotPrefix,
		ActivityType:   DefaultPresenceActivityKind,
		ActivityText:   DefaultPresenceActivityText,
		PresenceStatus: DefaultPresenceOnlineStatus,
	}
}

// CredentialCheck is the result of checking the format of the form's
// credentials. Nothing is sent over the network, so a passing check
// doesn't mean discord or the AI provider will accept the credential.
type CredentialCheck struct {
	DiscordTokenValid bool     `json:"discord_token_valid"`
	AIAPIKeyValid     bool     `json:"ai_api_key_valid"`
	BotPrefixValid    bool     `json:"bot_prefix_valid"`
	Errors            []string `json:"errors,omitempty"`
}

// Valid returns true if every check passed
func (c CredentialCheck) Valid() bool {
	return c.DiscordTokenValid && c.AIAPIKeyValid && c.BotPrefixValid
}

// ValidateDiscordToken checks that the token looks like a discord bot token
func ValidateDiscordToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrDiscordTokenRequired
	}
	if len(token) < discordTokenMinLength || !strings.Contains(token, ".") {
		return ErrInvalidDiscordToken
	}
	return nil
}

// ValidateAIAPIKey checks that the key looks like a Groq API key
func ValidateAIAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if len(key) < aiAPIKeyMinLength || !strings.HasPrefix(key, aiAPIKeyPrefix) {
		return ErrInvalidAIAPIKey
	}
	return nil
}

// ValidateBotPrefix checks the legacy command prefix length
func ValidateBotPrefix(prefix string) error {
	if len([]rune(prefix)) > botPrefixMaxLength {
		return ErrInvalidBotPrefix
	}
	return nil
}

// CheckCredentials runs the credential format checks. An empty AI key is
// reported as invalid, since the form has nothing to check.
func (f SetupForm) CheckCredentials() CredentialCheck {
	var check CredentialCheck

	if err := ValidateDiscordToken(f.DiscordToken); err != nil {
		check.Errors = append(check.Errors, err.Error())
	} else {
		check.DiscordTokenValid = true
	}

	if err := ValidateAIAPIKey(f.AIAPIKey); err != nil {
		check.Errors = append(check.Errors, err.Error())
	} else {
		check.AIAPIKeyValid = true
	}

	if err := ValidateBotPrefix(f.BotPrefix); err != nil {
		check.Errors = append(check.Errors, err.Error())
	} else {
		check.BotPrefixValid = true
	}
	return check
}

// Validate checks the form's field constraints (prefix length, and
// activity/presence values when set)
func (f SetupForm) Validate() error {
	if err := ValidateBotPrefix(f.BotPrefix); err != nil {
		return err
	}
	err := structValidator.Struct(f)
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		msgs := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			msgs = append(
				msgs,
				fmt.Sprintf("%s: failed '%s' (%v)", fe.Field(), fe.Tag(), fe.Value()),
			)
		}
		return fmt.Errorf("invalid setup form: %s", strings.Join(msgs, "; "))
	}
	return err
}

// GenerateEnvFile renders a .env file for the bot. The discord token is
// required. When no AI key is given, a placeholder is written instead.
func GenerateEnvFile(f SetupForm) (string, error) {
	if strings.TrimSpace(f.DiscordToken) == "" {
		return "", ErrDiscordTokenRequired
	}
	if f.AIAPIKey == "" {
		f.AIAPIKey = aiAPIKeyPlaceholder
	}

	var sb strings.Builder
	if err := envFileTemplate.Execute(&sb, f); err != nil {
		return "", fmt.Errorf("error rendering env file: %w", err)
	}
	return sb.String(), nil
}

// GenerateDeployScript renders a bash script which sets up a project
// directory with an example env file, builds the bot and prints the
// remaining steps. Credentials aren't included in the script.
func GenerateDeployScript(f SetupForm) (string, error) {
	f.DiscordToken = ""
	f.AIAPIKey = ""

	var sb strings.Builder
	if err := deployScriptTemplate.Execute(&sb, f); err != nil {
		return "", fmt.Errorf("error rendering deploy script: %w", err)
	}
	return sb.String(), nil
}

// projectName derives a directory name from the bot name,
// ex: "AI Assistant Bot" -> "ai-assistant-bot-discord-bot"
func projectName(botName string) string {
	return nonAlphanumeric.ReplaceAllString(strings.ToLower(botName), "-") + "-discord-bot"
}
