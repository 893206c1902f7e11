// Command medguard checks drug combinations for interactions and assesses
// patient-specific risk.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bivasb/medguard-ai-sub000/internal/adapters/driving/cli"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := wire(ctx, os.Getenv("MEDGUARD_HOME"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cli.SetVersion(version)
	cli.SetServices(app.services())

	// cobra has already printed the error
	err = cli.Execute(ctx)
	app.Close()
	if err != nil {
		os.Exit(1)
	}
}
