package slashbot

import (
	"context"
	"fmt"
	"github.com/bwmarrin/discordgo"
	"time"
)

// handlePing replies with the time since the interaction was created,
// and the gateway heartbeat latency.
func (b *SlashBot) handlePing(
	_ context.Context,
	c *commandInteraction,
) (*commandReply, error) {
	created, err := discordgo.SnowflakeTimestamp(c.handler.GetInteraction().ID)
	if err != nil {
		return nil, fmt.Errorf("error parsing interaction timestamp: %w", err)
	}
	latency := b.now().Sub(created)
	if latency < 0 {
		latency = 0
	}
	return &commandReply{
		Content: fmt.Sprintf(
			"🏓 Pong! Latency: %dms | API Latency: %dms",
			latency.Milliseconds(),
			b.discord.latency().Round(time.Millisecond).Milliseconds(),
		),
	}, nil
}
