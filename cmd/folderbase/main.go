package main

import (
	"github.com/averonn/folderbase/internal/cli/cmd"
)

// Build-time variables (set via ldflags).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cmd.SetBuildInfo(version, commit)
	cmd.Execute()
}
