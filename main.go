package main

import "github.com/LuisAlt810/Discord-ai-bot-set.up/cmd"

func main() {
	cmd.Execute()
}
