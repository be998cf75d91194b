package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hostward/device-agent/internal/logger"
	"github.com/hostward/device-agent/internal/utils"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := utils.SetupContext(context.Background())
	defer cancel()

	// Commands that do not load the config still log through the context.
	ctx = logger.NewContext(ctx, logger.NewLogger("warn"))

	return newRootCommand().ExecuteContext(ctx)
}
