package main

import "github.com/nwells/parley/cmd/parley/cmd"

func main() {
	cmd.Execute()
}
