package main

import (
	"os"

	"github.com/Catker/ashare-llm-analyst/cmd/analyst/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
