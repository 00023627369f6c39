package main

import "github.com/UkralStul/yatube/cmd/server/commands"

func main() {
	commands.Execute()
}
