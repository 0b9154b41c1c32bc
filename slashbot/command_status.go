package slashbot

import (
	"context"
	"errors"
	"github.com/bwmarrin/discordgo"
)

// handleStatus updates the bot's presence from the command options, and
// echoes back what was applied.
func (b *SlashBot) handleStatus(
	_ context.Context,
	c *commandInteraction,
) (*commandReply, error) {
	cfg := PresenceConfig{
		ActivityKind: c.stringOption(statusCommandTypeOption, ""),
		ActivityText: c.stringOption(statusCommandTextOption, ""),
		OnlineStatus: c.stringOption(
			statusCommandPresenceOption,
			string(discordgo.StatusOnline),
		),
		Mobile: c.boolOption(statusCommandMobileOption, false),
	}
	if cfg.ActivityKind == "" || cfg.ActivityText == "" {
		return nil, errors.New("missing activity type or text")
	}

	applied, err := b.discord.applyPresence(cfg)
	if err != nil {
		return nil, err
	}
	return &commandReply{Content: "✅ Status updated: " + applied.String()}, nil
}
