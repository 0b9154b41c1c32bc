// Package slashbot implements a Discord bot which publishes a small slash
// command catalog, answers AI questions through an OpenAI-compatible chat
// completion API (Groq, by default), and manages its own presence.
//
// Interactions are received either over the gateway websocket, or via an
// HTTP webhook endpoint (for bots configured with an interactions endpoint
// URL). Either way, each interaction gets exactly one reply.
//
// Commands:
//
//   - /ping: gateway latency and round trip time
//   - /help: an embed listing the commands
//   - /ai: asks the AI a question
//   - /status: changes the bot's presence
//   - /say: repeats a message
//
// Messages starting with the configured prefix (!ping, !help) are answered
// as well, for servers that haven't picked up the slash commands.
//
// The package also renders a .env file and a deploy script from a
// SetupForm, either directly or through the setup API.
package slashbot
