package main

import "github.com/streamgate/streamgate/cmd/streamgate/cmd"

func main() {
	cmd.Execute()
}
