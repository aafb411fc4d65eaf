package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/stablerelay/transfer-middleware/pkg/app"
	apporch "github.com/stablerelay/transfer-middleware/pkg/app/orchestrator"
	"github.com/stablerelay/transfer-middleware/pkg/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var runner app.Runner = apporch.NewServer(cfg)
	if err := runner.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Orchestrator failed: %v\n", err)
		os.Exit(1)
	}
}
