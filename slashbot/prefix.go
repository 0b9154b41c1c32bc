package slashbot

import (
	"context"
	"fmt"
	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"strings"
)

const (
	prefixCommandPing = "ping"
	prefixCommandHelp = "help"

	prefixPingReply = "🏓 Pong! Use `/ping` for detailed latency info."
	prefixHelpReply = "📋 Use `/help` to see all available commands!"
)

// prefixCommandReply returns the reply for a plain-text message starting
// with the given prefix. ok is false when the message should be ignored.
func prefixCommandReply(prefix string, content string) (reply string, ok bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", false
	}
	args := strings.Fields(strings.TrimPrefix(content, prefix))
	var command string
	if len(args) > 0 {
		command = strings.ToLower(args[0])
	}

	switch command {
	case prefixCommandPing:
		return prefixPingReply, true
	case prefixCommandHelp:
		return prefixHelpReply, true
	default:
		return fmt.Sprintf("❓ Unknown command. Use `%shelp` or `/help`", prefix), true
	}
}

// handleDiscordMessage replies to legacy prefix commands, ex: "!ping".
// Messages from bots, and messages without the prefix, are ignored.
func (b *SlashBot) handleDiscordMessage(
	ctx context.Context,
	m *discordgo.MessageCreate,
) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot {
		return
	}

	reply, ok := prefixCommandReply(b.config.Bot.Prefix, m.Content)
	if !ok {
		return
	}

	logger := b.discord.logger.With(
		"message_id", m.ID,
		"channel_id", m.ChannelID,
		"user_id", m.Author.ID,
	)
	logger.InfoContext(ctx, "received prefix command", "content", m.Content)

	if _, err := b.discord.session.ChannelMessageSendReply(
		m.ChannelID,
		reply,
		m.Reference(),
		discordgo.WithContext(ctx),
	); err != nil {
		logger.ErrorContext(ctx, "error replying to prefix command", tint.Err(err))
	}
}
