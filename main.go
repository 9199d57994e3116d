package main

import (
	"os"

	"github.com/G-Zak/jobgate-career-quest-sub004/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
