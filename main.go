// ABOUTME: Entry point for the noodler practice player
// ABOUTME: Hands control to the cobra command tree
package main

import "github.com/noodler-audio/noodler/internal/cli"

func main() {
	cli.Execute()
}
