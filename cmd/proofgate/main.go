package main

import "github.com/proofgate/proofgate/cmd/proofgate/cmd"

func main() {
	cmd.Execute()
}
