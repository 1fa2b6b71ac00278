package main

import "github.com/hazyhaar/datagate/cmd"

func main() {
	cmd.Execute()
}
