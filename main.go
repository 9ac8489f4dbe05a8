package main

import "github.com/NikkyAI/discordbot/cmd"

func main() {
	cmd.Execute()
}
