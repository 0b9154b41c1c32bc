package slashbot

import (
	"context"
	"errors"
)

const aiResponsePrefix = "🤖 **AI Response:**\n"

// handleAI forwards the question to the completion API. The interaction
// is deferred before this is called, since completions can easily take
// longer than discord's initial response window.
func (b *SlashBot) handleAI(
	ctx context.Context,
	c *commandInteraction,
) (*commandReply, error) {
	question := c.stringOption(aiCommandQuestionOption, "")
	if question == "" {
		return nil, errors.New("missing question")
	}
	answer := b.openai.Ask(ctx, question)
	return &commandReply{
		Content: shortenString(aiResponsePrefix+answer, discordMaxMessageLength),
	}, nil
}
