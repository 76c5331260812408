package main

import "github.com/scenedex/scenedex-agent/internal/cli"

func main() {
	cli.Execute()
}
