package main

import "github.com/Rorical/ragchat/cmd"

func main() {
	cmd.Execute()
}
