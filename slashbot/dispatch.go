package slashbot

import (
	"context"
	"fmt"
	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"log/slog"
)

const commandErrorMessage = "There was an error executing this command!"

// commandHandler executes a slash command, returning the reply to send.
// When deferred is set, the interaction is acknowledged before handle
// is called, and the reply is sent by editing the deferred response.
type commandHandler struct {
	deferred bool
	handle   func(ctx context.Context, c *commandInteraction) (*commandReply, error)
}

// commandHandlers returns the slash command name -> handler table. Every
// command in buildCommandSpecs has an entry.
func (b *SlashBot) commandHandlers() map[string]commandHandler {
	return map[string]commandHandler{
		DiscordSlashCommandPing:   {handle: b.handlePing},
		DiscordSlashCommandHelp:   {handle: b.handleHelp},
		DiscordSlashCommandAI:     {deferred: true, handle: b.handleAI},
		DiscordSlashCommandStatus: {handle: b.handleStatus},
		DiscordSlashCommandSay:    {handle: b.handleSay},
	}
}

// handleInteraction routes an incoming interaction to its command handler.
// Regardless of whether the handler succeeds, returns an error or panics,
// the user sees exactly one reply.
func (b *SlashBot) handleInteraction(
	ctx context.Context,
	handler InteractionHandler,
) {
	i := handler.GetInteraction()
	logger := handler.Logger().With(
		slog.Group("interaction", interactionLogAttrs(*i)...),
		"method", handler.InteractionReceiveMethod(),
	)
	ctx = WithLogger(ctx, logger)

	switch i.Type {
	case discordgo.InteractionPing:
		_ = handler.Respond(
			ctx, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponsePong,
			},
		)
		return
	case discordgo.InteractionApplicationCommand:
		//
	default:
		logger.DebugContext(ctx, "ignoring unsupported interaction type")
		return
	}

	discordUser := getDiscordUser(i)
	if discordUser == nil {
		logger.WarnContext(ctx, "no user found in interaction")
	} else if discordUser.Bot {
		logger.WarnContext(ctx, "user is bot, ignoring", "user_id", discordUser.ID)
		return
	}

	cmd := newCommandInteraction(handler)
	logger = logger.With("command", cmd.name)
	ctx = WithLogger(ctx, logger)
	logger.InfoContext(ctx, "received command")

	err := b.runCommand(ctx, cmd)
	if err == nil {
		return
	}

	logger.ErrorContext(
		ctx,
		"error executing command",
		tint.Err(err),
		"reply_state", cmd.state.String(),
	)
	if cmd.state == replySent {
		return
	}
	if replyErr := cmd.reply(ctx, &commandReply{Content: commandErrorMessage}); replyErr != nil {
		logger.ErrorContext(ctx, "error sending error reply", tint.Err(replyErr))
	}
}

// runCommand executes the handler for the given command. Panics are
// recovered and returned as errors.
func (b *SlashBot) runCommand(ctx context.Context, c *commandInteraction) (err error) {
	defer func() {
		if rc := recover(); rc != nil {
			err = handleRecover(ctx, rc)
		}
	}()

	h, ok := b.handlers[c.name]
	if !ok {
		return fmt.Errorf("unknown command: %q", c.name)
	}

	if h.deferred {
		if err = c.deferReply(ctx); err != nil {
			return fmt.Errorf("error deferring reply: %w", err)
		}
	}

	reply, err := h.handle(ctx, c)
	if err != nil {
		return err
	}
	return c.reply(ctx, reply)
}
