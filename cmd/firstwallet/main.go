package main

import "github.com/zihandong029/firstwallet/cmd/firstwallet/cmd"

func main() {
	cmd.Execute()
}
