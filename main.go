package main

import "whisk/cmd"

func main() {
	cmd.Execute()
}
