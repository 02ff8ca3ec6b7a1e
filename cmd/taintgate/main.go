package main

import "github.com/rkorstad/taintgate/internal/cli"

func main() {
	cli.Execute()
}
