package slashbot

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
)

const apiDiscordInteractions = "/discord/interactions"

// DiscordWebhookServer receives discord interactions over HTTP, as an
// alternative to the websocket gateway.
type DiscordWebhookServer struct {
	config     DiscordWebhookServerConfig
	httpServer *http.Server
	engine     *gin.Engine
	logger     *slog.Logger
	listener   net.Listener
	mu         sync.Mutex
}

// Serve listens on the configured address and serves until the server
// is shut down. TLS is used when a cert and key are configured.
func (d *DiscordWebhookServer) Serve(ctx context.Context) error {
	d.mu.Lock()
	if d.listener == nil {
		listenCfg := &net.ListenConfig{}
		ln, err := listenCfg.Listen(ctx, d.config.ListenNetwork, d.config.Listen)
		if err != nil {
			d.mu.Unlock()
			return fmt.Errorf("error listening on %s: %w", d.config.Listen, err)
		}
		d.listener = ln
	}
	ln := d.listener
	d.mu.Unlock()

	d.logger.InfoContext(ctx, "serving discord webhook", "addr", ln.Addr().String())
	if d.httpServer.TLSConfig == nil {
		d.logger.Warn("starting server without TLS")
		return d.httpServer.Serve(ln)
	}
	return d.httpServer.ServeTLS(ln, "", "")
}

// Shutdown gracefully stops the server
func (d *DiscordWebhookServer) Shutdown(ctx context.Context) error {
	return d.httpServer.Shutdown(ctx)
}

// Addr returns the listener's address, once Serve has been called
func (d *DiscordWebhookServer) Addr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return nil
	}
	return d.listener.Addr()
}

// newWebhookServer creates and returns a new [DiscordWebhookServer], and/or
// any errors that occurred during creation.
func newWebhookServer(
	b *SlashBot,
	config DiscordWebhookServerConfig,
) (*DiscordWebhookServer, error) {
	r := gin.New()
	api := &DiscordWebhookServer{
		config: config,
		engine: r,
		logger: newComponentLogger("discord_webhook", config.LogLevel),
	}

	httpServer := &http.Server{
		Addr:              config.Listen,
		Handler:           r,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}
	tlsCfg, e := tlsConfig(config.SSL.Cert, config.SSL.Key, config.SSL.TLSMinVersion)
	if e != nil {
		return nil, fmt.Errorf("error loading webhook SSL certs: %w", e)
	}
	httpServer.TLSConfig = tlsCfg
	api.httpServer = httpServer

	if b.config.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
		r.Use(gin.Recovery())
	}
	r.Use(
		requestIDMiddleware(),
		ginLoggingMiddleware(api.logger),
		discordRequestAuthenticationMiddleware(b.discord.publicKey),
	)

	r.POST(apiDiscordInteractions, webhookReceiveHandler(b))
	return api, nil
}

// WebhookHandler is a handler for Discord interactions received via webhook.
// The initial response is written as the HTTP response body, any later
// edits go through the REST API, same as the gateway.
// See: https://discord.com/developers/docs/interactions/overview#setting-up-an-endpoint-validating-security-request-headers
//
//nolint:lll  // can't split link
type WebhookHandler struct {
	GatewayHandler
	responses chan *discordgo.InteractionResponse
}

func (WebhookHandler) InteractionReceiveMethod() DiscordInteractionReceiveMethod {
	return discordInteractionReceiveMethodWebhook
}

func (w WebhookHandler) Respond(
	ctx context.Context,
	response *discordgo.InteractionResponse,
) error {
	select {
	case w.responses <- response:
		w.logger.InfoContext(ctx, "responded to interaction", "response_type", response.Type)
		return nil
	default:
		return errAlreadyReplied
	}
}

// webhookReceiveHandler returns a [gin.HandlerFunc] for handling Discord
// webhook interactions. The interaction is dispatched in its own goroutine,
// and the request is held until the initial response is available.
func webhookReceiveHandler(b *SlashBot) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := ginContextLogger(c)

		defer func() {
			_ = c.Request.Body.Close()
		}()
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			logger.ErrorContext(c, "error getting raw data", tint.Err(err))
			c.JSON(http.StatusInternalServerError, httpError{Error: "error getting raw data"})
			return
		}

		var interaction discordgo.InteractionCreate
		if e := json.Unmarshal(body, &interaction); e != nil || interaction.Interaction == nil {
			logger.ErrorContext(c, "error unmarshalling body", tint.Err(e))
			c.JSON(http.StatusBadRequest, httpError{Error: "error unmarshalling body"})
			return
		}

		handler := WebhookHandler{
			GatewayHandler: GatewayHandler{
				session:     b.discord.session,
				interaction: &interaction,
				logger:      logger,
			},
			responses: make(chan *discordgo.InteractionResponse, 1),
		}

		done := make(chan struct{})
		b.handlerWG.Add(1)
		go func() {
			defer b.handlerWG.Done()
			defer close(done)
			b.handleInteraction(b.runtimeContext(), handler)
		}()

		select {
		case resp := <-handler.responses:
			c.JSON(http.StatusOK, resp)
		case <-done:
			select {
			case resp := <-handler.responses:
				c.JSON(http.StatusOK, resp)
			default:
				logger.WarnContext(c, "interaction finished without a response")
				c.JSON(http.StatusInternalServerError, httpError{Error: "no response"})
			}
		case <-c.Request.Context().Done():
			logger.WarnContext(c, "request cancelled before a response was ready")
			_ = c.Error(errors.New("request cancelled"))
		}
	}
}

// discordRequestAuthenticationMiddleware is a middleware for verifying Discord
// webhook requests.
// See: https://discord.com/developers/docs/interactions/overview#setting-up-an-endpoint-validating-security-request-headers
//
//nolint:lll // can't split link
func discordRequestAuthenticationMiddleware(publicKey ed25519.PublicKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := ginContextLogger(c)
		if !verifyRequest(c.Request, publicKey) {
			logger.WarnContext(c, "invalid signature")
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpError{Error: "invalid signature"})
			return
		}
		c.Next()
	}
}

// verifyRequest verifies the authenticity of a Discord webhook request.
//
// This function checks the request's signature and timestamp headers to validate
// the request. It reads the request body and verifies the signature using the
// provided public key. The body is replaced so later handlers can read it.
func verifyRequest(r *http.Request, key ed25519.PublicKey) bool {
	if len(key) != ed25519.PublicKeySize {
		return false
	}

	var msg bytes.Buffer

	signature := r.Header.Get("X-Signature-Ed25519")
	if signature == "" {
		return false
	}

	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	if len(sig) != ed25519.SignatureSize || sig[63]&224 != 0 {
		return false
	}

	timestamp := r.Header.Get("X-Signature-Timestamp")
	if timestamp == "" {
		return false
	}

	msg.WriteString(timestamp)

	defer func() {
		_ = r.Body.Close()
	}()
	var body bytes.Buffer

	defer func() {
		r.Body = io.NopCloser(&body)
	}()

	_, err = io.Copy(&msg, io.TeeReader(r.Body, &body))
	if err != nil {
		return false
	}

	return ed25519.Verify(key, msg.Bytes(), sig)
}
