package main

import (
	"time"

	"github.com/encops/updatectl/pkg/cmd"
)

var (
	// these variables are populated by Goreleaser when releasing
	version = "unknown"
	commit  = "-dirty-"
	date    = time.Now().Format("2006-01-02")

	appName     = "updatectl"
	appLongName = "Switch fleet security updates on/off"
)

func main() {
	cmd.Execute()
}
