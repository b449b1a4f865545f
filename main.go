package main

import (
	"os"

	"github.com/MartinKavik/popos-fix-vram-leak/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
