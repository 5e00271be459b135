package main

import "github.com/ffland/portal/cmd/portal/cmd"

func main() {
	cmd.Execute()
}
