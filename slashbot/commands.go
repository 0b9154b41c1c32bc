package slashbot

import (
	"github.com/bwmarrin/discordgo"
)

const (
	DiscordSlashCommandPing   = "ping"
	DiscordSlashCommandHelp   = "help"
	DiscordSlashCommandAI     = "ai"
	DiscordSlashCommandStatus = "status"
	DiscordSlashCommandSay    = "say"

	aiCommandQuestionOption = "question"

	statusCommandTypeOption     = "type"
	statusCommandTextOption     = "text"
	statusCommandPresenceOption = "presence"
	statusCommandMobileOption   = "mobile"

	sayCommandMessageOption = "message"
)

// buildCommandSpecs returns the bot's slash command catalog, in the order
// it's published to discord.
func buildCommandSpecs() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		appCommandPing(),
		appCommandHelp(),
		appCommandAI(),
		appCommandStatus(),
		appCommandSay(),
	}
}

func appCommandPing() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandPing,
		Type:        discordgo.ChatApplicationCommand,
		Description: "Check bot latency",
	}
}

func appCommandHelp() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandHelp,
		Type:        discordgo.ChatApplicationCommand,
		Description: "Show available commands",
	}
}

func appCommandAI() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandAI,
		Type:        discordgo.ChatApplicationCommand,
		Description: "Ask AI a question",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        aiCommandQuestionOption,
				Description: "Your question for the AI",
				Required:    true,
			},
		},
	}
}

func appCommandStatus() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandStatus,
		Type:        discordgo.ChatApplicationCommand,
		Description: "Change bot status",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        statusCommandTypeOption,
				Description: "Activity type",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Playing", Value: activityPlaying},
					{Name: "Watching", Value: activityWatching},
					{Name: "Listening", Value: activityListening},
					{Name: "Streaming", Value: activityStreaming},
					{Name: "Competing", Value: activityCompeting},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        statusCommandTextOption,
				Description: "Status text",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        statusCommandPresenceOption,
				Description: "Bot presence",
				Required:    false,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Online", Value: string(discordgo.StatusOnline)},
					{Name: "Idle", Value: string(discordgo.StatusIdle)},
					{Name: "Do Not Disturb", Value: string(discordgo.StatusDoNotDisturb)},
					{Name: "Invisible", Value: string(discordgo.StatusInvisible)},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        statusCommandMobileOption,
				Description: "Show mobile indicator",
				Required:    false,
			},
		},
	}
}

func appCommandSay() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandSay,
		Type:        discordgo.ChatApplicationCommand,
		Description: "Make the bot say something",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        sayCommandMessageOption,
				Description: "Message to say",
				Required:    true,
			},
		},
	}
}
