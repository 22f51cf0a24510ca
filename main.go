package main

import "lingo-fusion/cmd"

func main() {
	cmd.Execute()
}
