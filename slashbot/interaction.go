package slashbot

import (
	"context"
	"errors"
	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"log/slog"
)

type DiscordInteractionReceiveMethod string

const (
	discordInteractionReceiveMethodGateway DiscordInteractionReceiveMethod = "gateway"
	discordInteractionReceiveMethodWebhook DiscordInteractionReceiveMethod = "webhook"
)

var errAlreadyReplied = errors.New("interaction already replied to")

// InteractionHandler defines the interface for responding to Discord
// interactions. Command execution is the same regardless of whether an
// interaction was received via the gateway or the webhook server, only
// the initial response differs.
type InteractionHandler interface {
	// Respond sends the initial response to a Discord interaction.
	Respond(ctx context.Context, i *discordgo.InteractionResponse) error

	// Edit modifies an existing (or deferred) interaction response.
	Edit(
		ctx context.Context,
		e *discordgo.WebhookEdit,
		opts ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// GetInteraction returns the original InteractionCreate event.
	GetInteraction() *discordgo.InteractionCreate

	// InteractionReceiveMethod returns the method used to receive the
	// interaction (webhook or gateway).
	InteractionReceiveMethod() DiscordInteractionReceiveMethod

	// Logger returns the logger associated with this handler.
	Logger() *slog.Logger
}

// GatewayHandler implements [InteractionHandler] when receiving interactions
// via the discord websocket gateway.
type GatewayHandler struct {
	session     DiscordSessionHandler
	interaction *discordgo.InteractionCreate
	logger      *slog.Logger
}

func (GatewayHandler) InteractionReceiveMethod() DiscordInteractionReceiveMethod {
	return discordInteractionReceiveMethodGateway
}

func (w GatewayHandler) Respond(
	ctx context.Context,
	response *discordgo.InteractionResponse,
) error {
	err := w.session.InteractionRespond(
		w.interaction.Interaction,
		response,
		discordgo.WithContext(ctx),
	)
	if err != nil {
		w.logger.ErrorContext(ctx, "error responding to interaction", tint.Err(err))
	} else {
		w.logger.InfoContext(ctx, "responded to interaction", "response_type", response.Type)
	}
	return err
}

func (w GatewayHandler) GetInteraction() *discordgo.InteractionCreate {
	return w.interaction
}

func (w GatewayHandler) Edit(
	ctx context.Context,
	wh *discordgo.WebhookEdit,
	opts ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	msg, err := w.session.InteractionResponseEdit(
		w.interaction.Interaction,
		wh,
		append(opts, discordgo.WithContext(ctx))...,
	)
	if err != nil {
		w.logger.ErrorContext(ctx, "error editing interaction response", tint.Err(err))
	} else {
		w.logger.InfoContext(ctx, "edited interaction")
	}
	return msg, err
}

func (w GatewayHandler) Logger() *slog.Logger {
	return w.logger
}

type replyState int

const (
	replyUnsent replyState = iota
	replyDeferred
	replySent
)

func (s replyState) String() string {
	switch s {
	case replyUnsent:
		return "unsent"
	case replyDeferred:
		return "deferred"
	case replySent:
		return "sent"
	default:
		return "unknown"
	}
}

// commandReply is the content of a reply to a slash command
type commandReply struct {
	Content string
	Embeds  []*discordgo.MessageEmbed
}

// commandInteraction is a single slash command invocation. It tracks
// whether the interaction has been replied to, so exactly one
// user-visible reply is sent, either directly or by editing a
// deferred response.
type commandInteraction struct {
	handler InteractionHandler
	name    string
	options map[string]*discordgo.ApplicationCommandInteractionDataOption
	user    *discordgo.User
	state   replyState
}

func newCommandInteraction(handler InteractionHandler) *commandInteraction {
	i := handler.GetInteraction()
	return &commandInteraction{
		handler: handler,
		name:    i.ApplicationCommandData().Name,
		options: discordInteractionOptions(i),
		user:    getDiscordUser(i),
		state:   replyUnsent,
	}
}

// deferReply acknowledges the interaction without content. The reply
// must later be sent with reply, which edits the deferred response.
func (c *commandInteraction) deferReply(ctx context.Context) error {
	if c.state != replyUnsent {
		return errAlreadyReplied
	}
	err := c.handler.Respond(
		ctx,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		},
	)
	if err != nil {
		return err
	}
	c.state = replyDeferred
	return nil
}

// reply sends the user-visible reply, either as the initial response or
// as an edit of the deferred response.
func (c *commandInteraction) reply(ctx context.Context, r *commandReply) error {
	switch c.state {
	case replyUnsent:
		err := c.handler.Respond(
			ctx,
			&discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Content: r.Content,
					Embeds:  r.Embeds,
				},
			},
		)
		if err != nil {
			return err
		}
	case replyDeferred:
		edit := &discordgo.WebhookEdit{Content: &r.Content}
		if len(r.Embeds) > 0 {
			edit.Embeds = &r.Embeds
		}
		if _, err := c.handler.Edit(ctx, edit); err != nil {
			return err
		}
	default:
		return errAlreadyReplied
	}
	c.state = replySent
	return nil
}

// stringOption returns the value of the named string option, or the
// given default if the option wasn't provided
func (c *commandInteraction) stringOption(name string, defaultValue string) string {
	opt, ok := c.options[name]
	if !ok || opt == nil || opt.Type != discordgo.ApplicationCommandOptionString {
		return defaultValue
	}
	return opt.StringValue()
}

// boolOption returns the value of the named boolean option, or the
// given default if the option wasn't provided
func (c *commandInteraction) boolOption(name string, defaultValue bool) bool {
	opt, ok := c.options[name]
	if !ok || opt == nil || opt.Type != discordgo.ApplicationCommandOptionBoolean {
		return defaultValue
	}
	return opt.BoolValue()
}
