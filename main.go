package main

import "github.com/timvw/command-center/cmd"

func main() {
	cmd.Execute()
}
