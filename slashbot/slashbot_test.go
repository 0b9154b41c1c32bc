package slashbot

import (
	"context"
	"errors"
	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestNew_NilConfig(t *testing.T) {
	t.Parallel()
	_, err := New(nil)
	assert.Error(t, err)

	cfg := DefaultTestConfig(t)
	cfg.AI = nil
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestNew_InvalidWebhookKey(t *testing.T) {
	t.Parallel()
	cfg := DefaultTestConfig(t)
	cfg.Discord.WebhookServer.Enabled = true
	cfg.Discord.WebhookServer.PublicKey = "not-hex"
	_, err := New(cfg)
	assert.ErrorContains(t, err, "error decoding public key")
}

func TestOnReady(t *testing.T) {
	t.Parallel()
	bot, session := newTestBot(t)

	_, ok := bot.Identity()
	assert.False(t, ok)

	ready := &discordgo.Ready{
		SessionID: "session_" + t.Name(),
		User:      &discordgo.User{ID: "bot_user", Username: "slashbot"},
		Guilds: []*discordgo.Guild{
			{ID: "g1", MemberCount: 10},
			{ID: "g2", MemberCount: 5},
			nil,
		},
	}
	bot.onReady(context.Background(), ready)
	bot.handlerWG.Wait()

	identity, ok := bot.Identity()
	require.True(t, ok)
	assert.Equal(t, BotIdentity{ID: "bot_user", Username: "slashbot", GuildCount: 3, UserCount: 15}, identity)

	require.Len(t, session.callUpdateStatusComplex, 1)
	data := <-session.callUpdateStatusComplex
	require.Len(t, data.Activities, 1)
	assert.Equal(t, DefaultPresenceActivityText, data.Activities[0].Name)
	assert.Equal(t, discordgo.ActivityTypeGame, data.Activities[0].Type)
	assert.Equal(t, DefaultPresenceOnlineStatus, data.Status)

	require.Len(t, session.callBulkOverwrite, 1)
	assert.Len(t, <-session.callBulkOverwrite, 5)
}

func TestOnReady_Reconnect(t *testing.T) {
	t.Parallel()
	bot, session := newTestBot(t)

	first := &discordgo.Ready{
		User:   &discordgo.User{ID: "bot_user", Username: "slashbot"},
		Guilds: []*discordgo.Guild{{ID: "g1", MemberCount: 3}},
	}
	bot.onReady(context.Background(), first)
	bot.handlerWG.Wait()
	<-session.callUpdateStatusComplex

	// a presence set by /status should survive a reconnect
	_, err := bot.discord.applyPresence(
		PresenceConfig{ActivityKind: "competing", ActivityText: "a tournament", OnlineStatus: "dnd"},
	)
	require.NoError(t, err)
	<-session.callUpdateStatusComplex

	second := &discordgo.Ready{
		User:   &discordgo.User{ID: "bot_user", Username: "renamed"},
		Guilds: []*discordgo.Guild{{ID: "g1"}, {ID: "g2"}},
	}
	bot.onReady(context.Background(), second)
	bot.handlerWG.Wait()

	identity, ok := bot.Identity()
	require.True(t, ok)
	assert.Equal(t, "slashbot", identity.Username)
	assert.Equal(t, 1, identity.GuildCount)

	require.Len(t, session.callUpdateStatusComplex, 1)
	data := <-session.callUpdateStatusComplex
	assert.Equal(t, "a tournament", data.Activities[0].Name)
	assert.Equal(t, discordgo.ActivityTypeCompeting, data.Activities[0].Type)
	assert.Equal(t, "dnd", data.Status)

	// commands are only published once per process
	assert.Len(t, session.callBulkOverwrite, 1)
}

func TestOnReady_RegistrationFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	bot, session := newTestBot(t)
	session.overwriteErr = errors.New("missing access")

	bot.onReady(
		context.Background(),
		&discordgo.Ready{User: &discordgo.User{ID: "bot_user"}},
	)
	bot.handlerWG.Wait()

	assert.Len(t, session.callBulkOverwrite, 1)
	_, ok := bot.Identity()
	assert.True(t, ok)

	// commands registered previously still get handled
	i := newDiscordInteraction(
		t, newDiscordUser(t), DiscordSlashCommandSay,
		stringOpt(sayCommandMessageOption, "still here"),
	)
	content, _ := requireSingleReply(t, dispatch(t, bot, i))
	assert.Equal(t, "📢 still here", content)
}

func TestOnReady_FallsBackToBotUserID(t *testing.T) {
	t.Parallel()
	cfg := DefaultTestConfig(t)
	cfg.Discord.ApplicationID = ""
	bot, session := newTestBotWithConfig(t, cfg)

	bot.onReady(
		context.Background(),
		&discordgo.Ready{User: &discordgo.User{ID: "bot_user"}},
	)
	bot.handlerWG.Wait()

	require.Len(t, session.callBulkOverwrite, 1)
}

func TestRun_Gateway(t *testing.T) {
	cfg := DefaultTestConfig(t)
	cfg.Discord.Presence.Mobile = true
	bot, session := newTestBotWithConfig(t, cfg)

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

	assert.Len(t, session.callOpen, 1)
	assert.Equal(t, mobileClientBrowser, session.clientBrowser())

	session.mu.Lock()
	assert.Equal(t, 5, session.handlersAdded)
	session.mu.Unlock()

	cancel()
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("timed out waiting for shutdown")
	}

	assert.Len(t, session.callClose, 1)
	session.mu.Lock()
	assert.Equal(t, 0, session.handlersAdded)
	session.mu.Unlock()
}

func TestRun_OpenError(t *testing.T) {
	t.Parallel()
	bot, session := newTestBot(t)
	sentinel := errors.New("authentication failed")
	session.openErr = sentinel

	err := bot.Run(context.Background())
	require.ErrorIs(t, err, sentinel)
	assert.Len(t, session.callClose, 1)
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultTestConfig(t)
	cfg.Discord.Token = ""
	bot, session := newTestBotWithConfig(t, cfg)

	require.Error(t, bot.Run(context.Background()))
	assert.Empty(t, session.callOpen)
}
