// Command aegis-guard is the CLI for the Aegis Guard policy enforcement
// system: policy extraction, validation, and transcript replay.
package main

import "github.com/Aegis-Guard/Aegisguard/cmd/aegis-guard/cmd"

func main() {
	cmd.Execute()
}
