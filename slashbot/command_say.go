package slashbot

import (
	"context"
	"errors"
)

func (b *SlashBot) handleSay(
	_ context.Context,
	c *commandInteraction,
) (*commandReply, error) {
	msg := c.stringOption(sayCommandMessageOption, "")
	if msg == "" {
		return nil, errors.New("missing message")
	}
	return &commandReply{Content: "📢 " + msg}, nil
}
