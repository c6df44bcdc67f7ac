package main

import "github.com/deploymenttheory/go-mobilesync/cmd"

func main() {
	cmd.Execute()
}
