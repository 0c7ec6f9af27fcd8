package main

import "github.com/tomasrezac/photo-companion/cmd"

func main() {
	cmd.Execute()
}
