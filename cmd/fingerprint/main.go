package main

import "github.com/KaramelBytes/fingerprint-cli/cmd"

func main() {
	cmd.Execute()
}
