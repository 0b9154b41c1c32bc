package slashbot

import (
	"fmt"
	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"log/slog"
	"strings"
)

const (
	activityPlaying   = "playing"
	activityStreaming = "streaming"
	activityListening = "listening"
	activityWatching  = "watching"
	activityCompeting = "competing"

	// mobileClientBrowser is sent as the identify browser property when
	// the mobile indicator is requested
	mobileClientBrowser = "Discord iOS"
)

// defaultClientBrowser is discordgo's own identify browser value
var defaultClientBrowser = "DiscordGo v" + discordgo.VERSION

var activityTypes = map[string]discordgo.ActivityType{
	activityPlaying:   discordgo.ActivityTypeGame,
	activityStreaming: discordgo.ActivityTypeStreaming,
	activityListening: discordgo.ActivityTypeListening,
	activityWatching:  discordgo.ActivityTypeWatching,
	activityCompeting: discordgo.ActivityTypeCompeting,
}

var onlineStatuses = map[string]discordgo.Status{
	string(discordgo.StatusOnline):       discordgo.StatusOnline,
	string(discordgo.StatusIdle):         discordgo.StatusIdle,
	string(discordgo.StatusDoNotDisturb): discordgo.StatusDoNotDisturb,
	string(discordgo.StatusInvisible):    discordgo.StatusInvisible,
}

// PresenceConfig is a requested bot presence. Unrecognized values are
// replaced with defaults when applied, rather than rejected.
type PresenceConfig struct {
	// One of: playing, streaming, listening, watching, competing.
	// Anything else is treated as watching.
	ActivityKind string `yaml:"activity_kind" mapstructure:"activity_kind" json:"activity_kind"`

	// Free text shown after the activity kind
	ActivityText string `yaml:"activity_text" mapstructure:"activity_text" json:"activity_text"`

	// One of: online, idle, dnd, invisible. Anything else is treated as online.
	OnlineStatus string `yaml:"online_status" mapstructure:"online_status" json:"online_status"`

	// Requests the mobile client indicator. Best-effort, since discord
	// only reads it when identifying.
	Mobile bool `yaml:"mobile" mapstructure:"mobile" json:"mobile"`
}

// AppliedPresence is the presence that was actually sent, after defaults
// were substituted for unrecognized values.
type AppliedPresence struct {
	ActivityKind string                 `json:"activity_kind"`
	ActivityType discordgo.ActivityType `json:"activity_type"`
	ActivityText string                 `json:"activity_text"`
	Status       discordgo.Status       `json:"status"`
	Mobile       bool                   `json:"mobile"`
}

func (p AppliedPresence) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("activity_kind", p.ActivityKind),
		slog.Int("activity_type", int(p.ActivityType)),
		slog.String("activity_text", p.ActivityText),
		slog.String("status", string(p.Status)),
		slog.Bool("mobile", p.Mobile),
	)
}

// String renders the presence the way it's echoed back to users,
// ex: "playing with tests (idle) with mobile indicator"
func (p AppliedPresence) String() string {
	s := fmt.Sprintf("%s %s (%s)", p.ActivityKind, p.ActivityText, p.Status)
	if p.Mobile {
		s += " with mobile indicator"
	}
	return s
}

// resolvePresence normalizes the given config into the presence that
// will be published
func resolvePresence(cfg PresenceConfig) AppliedPresence {
	kind := strings.ToLower(strings.TrimSpace(cfg.ActivityKind))
	activityType, ok := activityTypes[kind]
	if !ok {
		kind = activityWatching
		activityType = discordgo.ActivityTypeWatching
	}

	status, ok := onlineStatuses[strings.ToLower(strings.TrimSpace(cfg.OnlineStatus))]
	if !ok {
		status = discordgo.StatusOnline
	}

	return AppliedPresence{
		ActivityKind: kind,
		ActivityType: activityType,
		ActivityText: cfg.ActivityText,
		Status:       status,
		Mobile:       cfg.Mobile,
	}
}

// applyPresence publishes the given presence with a single status update.
// Errors from discord are returned as-is.
func (d *Discord) applyPresence(cfg PresenceConfig) (AppliedPresence, error) {
	applied := resolvePresence(cfg)

	if applied.Mobile {
		d.session.SetClientBrowser(mobileClientBrowser)
	} else {
		d.session.SetClientBrowser(defaultClientBrowser)
	}

	err := d.session.UpdateStatusComplex(
		discordgo.UpdateStatusData{
			Activities: []*discordgo.Activity{
				{
					Name: applied.ActivityText,
					Type: applied.ActivityType,
				},
			},
			Status: string(applied.Status),
			AFK:    false,
		},
	)
	if err != nil {
		d.logger.Error("error updating presence", tint.Err(err), "presence", applied)
		return applied, fmt.Errorf("error updating presence: %w", err)
	}
	d.presence.Store(&cfg)
	d.logger.Info("updated presence", "presence", applied)
	return applied, nil
}

// currentPresence returns the most recently applied presence, or the
// configured initial presence if none has been applied yet
func (d *Discord) currentPresence() PresenceConfig {
	if p := d.presence.Load(); p != nil {
		return *p
	}
	return d.config.Presence
}
