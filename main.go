package main

import "github.com/itsmostafa/funpad/cmd"

func main() {
	cmd.Execute()
}
