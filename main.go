package main

import "datachat-cli/cmd"

func main() {
	cmd.Execute()
}
