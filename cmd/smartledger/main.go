package main

import "smartledger/cmd/smartledger/cmd"

func main() {
	cmd.Execute()
}
