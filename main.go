package main

import "github.com/barge-dl/barge/cmd"

func main() {
	cmd.Execute()
}
