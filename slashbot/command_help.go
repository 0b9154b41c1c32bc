package slashbot

import (
	"context"
	"fmt"
	"github.com/bwmarrin/discordgo"
	"time"
)

const helpEmbedColor = 0x0099ff

var commandEmoji = map[string]string{
	DiscordSlashCommandPing:   "🏓",
	DiscordSlashCommandHelp:   "❓",
	DiscordSlashCommandAI:     "🤖",
	DiscordSlashCommandStatus: "🎭",
	DiscordSlashCommandSay:    "💬",
}

// helpEmbed lists each registered command and the legacy prefix
func helpEmbed(bot *BotConfig, ts time.Time) *discordgo.MessageEmbed {
	specs := buildCommandSpecs()
	fields := make([]*discordgo.MessageEmbedField, 0, len(specs)+1)
	for _, cmd := range specs {
		fields = append(
			fields, &discordgo.MessageEmbedField{
				Name:   fmt.Sprintf("%s /%s", commandEmoji[cmd.Name], cmd.Name),
				Value:  cmd.Description,
				Inline: true,
			},
		)
	}
	fields = append(
		fields, &discordgo.MessageEmbedField{
			Name:   "⚙️ Prefix",
			Value:  bot.Prefix,
			Inline: true,
		},
	)

	return &discordgo.MessageEmbed{
		Type:        discordgo.EmbedTypeRich,
		Title:       fmt.Sprintf("%s - Help", bot.Name),
		Description: bot.Description,
		Color:       helpEmbedColor,
		Fields:      fields,
		Timestamp:   ts.UTC().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%s %s", bot.Name, Version),
		},
	}
}

func (b *SlashBot) handleHelp(
	_ context.Context,
	_ *commandInteraction,
) (*commandReply, error) {
	return &commandReply{
		Embeds: []*discordgo.MessageEmbed{helpEmbed(b.config.Bot, b.now())},
	}, nil
}
