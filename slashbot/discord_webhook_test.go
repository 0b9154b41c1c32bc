package slashbot

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// generateDiscordKey creates an ed25519 key pair to sign webhook requests with
func generateDiscordKey(t testing.TB) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pubkey, privkey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pubkey, privkey
}

func newWebhookTestBot(t testing.TB) (*SlashBot, *mockDiscordSession, ed25519.PrivateKey) {
	t.Helper()
	pubkey, privkey := generateDiscordKey(t)

	cfg := DefaultTestConfig(t)
	cfg.Discord.GatewayEnabled = false
	cfg.Discord.WebhookServer.Enabled = true
	cfg.Discord.WebhookServer.Listen = "127.0.0.1:0"
	cfg.Discord.WebhookServer.PublicKey = hex.EncodeToString(pubkey)

	bot, session := newTestBotWithConfig(t, cfg)
	require.NotNil(t, bot.discordWebhookServer)
	return bot, session, privkey
}

func signedInteractionRequest(
	t testing.TB,
	privkey ed25519.PrivateKey,
	body []byte,
) *http.Request {
	t.Helper()
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	sig := ed25519.Sign(privkey, append([]byte(timestamp), body...))

	req := httptest.NewRequest(http.MethodPost, apiDiscordInteractions, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature-Ed25519", hex.EncodeToString(sig))
	req.Header.Set("X-Signature-Timestamp", timestamp)
	return req
}

func webhookCommandBody(command string, options string, bot bool) []byte {
	return []byte(
		fmt.Sprintf(
			`{
				"id": %q,
				"application_id": %q,
				"type": 2,
				"token": "interaction-token",
				"channel_id": "channel_1",
				"guild_id": "guild_1",
				"member": {"user": {"id": "user_1", "username": "tester", "bot": %t}},
				"data": {"id": "cmd_1", "name": %q, "type": 1, "options": [%s]}
			}`,
			snowflakeAt(time.Now()),
			testApplicationID,
			bot,
			command,
			options,
		),
	)
}

func serveWebhook(bot *SlashBot, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	bot.discordWebhookServer.engine.ServeHTTP(w, req)
	return w
}

func decodeInteractionResponse(t testing.TB, w *httptest.ResponseRecorder) discordgo.InteractionResponse {
	t.Helper()
	var resp discordgo.InteractionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestWebhook_Ping(t *testing.T) {
	t.Parallel()
	bot, _, privkey := newWebhookTestBot(t)

	body := []byte(fmt.Sprintf(`{"id": %q, "application_id": %q, "type": 1, "token": "t"}`, snowflakeAt(time.Now()), testApplicationID))
	w := serveWebhook(bot, signedInteractionRequest(t, privkey, body))
	bot.handlerWG.Wait()

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeInteractionResponse(t, w)
	assert.Equal(t, discordgo.InteractionResponsePong, resp.Type)
	assert.NotEmpty(t, w.Header().Get(xRequestIDHeader))
}

func TestWebhook_Say(t *testing.T) {
	t.Parallel()
	bot, session, privkey := newWebhookTestBot(t)

	body := webhookCommandBody(
		DiscordSlashCommandSay,
		`{"name": "message", "type": 3, "value": "hello"}`,
		false,
	)
	w := serveWebhook(bot, signedInteractionRequest(t, privkey, body))
	bot.handlerWG.Wait()

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeInteractionResponse(t, w)
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "📢 hello", resp.Data.Content)

	// the initial response goes in the HTTP response, not the REST API
	assert.Empty(t, session.callInteractionRespond)
	assert.Empty(t, session.callInteractionEdit)
}

func TestWebhook_DeferredAI(t *testing.T) {
	t.Parallel()
	bot, session, privkey := newWebhookTestBot(t)

	client := &mockOpenAIClient{}
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(chatCompletionResponse("forty-two"), nil).
		Once()
	bot.openai.client = client

	body := webhookCommandBody(
		DiscordSlashCommandAI,
		`{"name": "question", "type": 3, "value": "meaning of life?"}`,
		false,
	)
	w := serveWebhook(bot, signedInteractionRequest(t, privkey, body))
	bot.handlerWG.Wait()

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeInteractionResponse(t, w)
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, resp.Type)

	require.Len(t, session.callInteractionEdit, 1)
	edit := <-session.callInteractionEdit
	require.NotNil(t, edit.Content)
	assert.Equal(t, aiResponsePrefix+"forty-two", *edit.Content)
	client.AssertExpectations(t)
}

func TestWebhook_UnknownCommand(t *testing.T) {
	t.Parallel()
	bot, _, privkey := newWebhookTestBot(t)

	w := serveWebhook(
		bot,
		signedInteractionRequest(t, privkey, webhookCommandBody("nope", "", false)),
	)
	bot.handlerWG.Wait()

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeInteractionResponse(t, w)
	require.NotNil(t, resp.Data)
	assert.Equal(t, commandErrorMessage, resp.Data.Content)
}

func TestWebhook_NoResponse(t *testing.T) {
	t.Parallel()
	bot, _, privkey := newWebhookTestBot(t)

	body := webhookCommandBody(DiscordSlashCommandPing, "", true)
	w := serveWebhook(bot, signedInteractionRequest(t, privkey, body))
	bot.handlerWG.Wait()

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	t.Parallel()
	bot, _, _ := newWebhookTestBot(t)
	_, otherKey := generateDiscordKey(t)

	body := webhookCommandBody(DiscordSlashCommandPing, "", false)
	w := serveWebhook(bot, signedInteractionRequest(t, otherKey, body))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhook_MissingSignature(t *testing.T) {
	t.Parallel()
	bot, _, privkey := newWebhookTestBot(t)
	body := webhookCommandBody(DiscordSlashCommandPing, "", false)

	noSig := signedInteractionRequest(t, privkey, body)
	noSig.Header.Del("X-Signature-Ed25519")
	assert.Equal(t, http.StatusUnauthorized, serveWebhook(bot, noSig).Code)

	noTimestamp := signedInteractionRequest(t, privkey, body)
	noTimestamp.Header.Del("X-Signature-Timestamp")
	assert.Equal(t, http.StatusUnauthorized, serveWebhook(bot, noTimestamp).Code)

	badHex := signedInteractionRequest(t, privkey, body)
	badHex.Header.Set("X-Signature-Ed25519", "not-hex")
	assert.Equal(t, http.StatusUnauthorized, serveWebhook(bot, badHex).Code)
}

func TestWebhook_TamperedBody(t *testing.T) {
	t.Parallel()
	bot, _, privkey := newWebhookTestBot(t)

	req := signedInteractionRequest(
		t,
		privkey,
		webhookCommandBody(DiscordSlashCommandSay, `{"name": "message", "type": 3, "value": "a"}`, false),
	)
	req.Body = http.NoBody
	assert.Equal(t, http.StatusUnauthorized, serveWebhook(bot, req).Code)
}

func TestWebhook_BadJSON(t *testing.T) {
	t.Parallel()
	bot, _, privkey := newWebhookTestBot(t)
	w := serveWebhook(bot, signedInteractionRequest(t, privkey, []byte(`{"id": `)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNewDiscord_InvalidPublicKey(t *testing.T) {
	t.Parallel()
	cfg := DefaultTestConfig(t).Discord

	cfg.WebhookServer.PublicKey = "zz"
	_, err := newDiscord(cfg)
	assert.Error(t, err)

	cfg.WebhookServer.PublicKey = "abcd"
	_, err = newDiscord(cfg)
	assert.ErrorContains(t, err, "invalid public key length")
}

func TestVerifyRequest_NoKey(t *testing.T) {
	t.Parallel()
	_, privkey := generateDiscordKey(t)
	req := signedInteractionRequest(t, privkey, []byte(`{}`))
	assert.False(t, verifyRequest(req, nil))
}

func TestRun_WebhookOnly(t *testing.T) {
	bot, session, privkey := newWebhookTestBot(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- bot.Run(ctx)
	}()

	select {
	case <-bot.Ready():
	case err := <-runErr:
		t.Fatalf("error starting bot: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for bot to start")
	}

	require.Eventually(
		t,
		func() bool { return bot.discordWebhookServer.Addr() != nil },
		5*time.Second,
		10*time.Millisecond,
	)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	body := webhookCommandBody(
		DiscordSlashCommandSay,
		`{"name": "message", "type": 3, "value": "over the wire"}`,
		false,
	)
	req := signedInteractionRequest(t, privkey, body)
	req.RequestURI = ""
	req.URL.Scheme = "http"
	req.URL.Host = bot.discordWebhookServer.Addr().String()

	resp, err := client.Do(req)
	require.NoError(t, err)
	var ir discordgo.InteractionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ir))
	_ = resp.Body.Close()
	require.NotNil(t, ir.Data)
	assert.Equal(t, "📢 over the wire", ir.Data.Content)

	cancel()
	select {
	case err = <-runErr:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("timed out waiting for shutdown")
	}

	// webhook mode publishes commands using the configured application ID,
	// and never opens the gateway
	require.Len(t, session.callBulkOverwrite, 1)
	assert.Len(t, <-session.callBulkOverwrite, 5)
	assert.Empty(t, session.callOpen)
	assert.Empty(t, session.callClose)
}
