package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/jasper0315/icebreak-app/internal/config"
	"github.com/jasper0315/icebreak-app/internal/health"
)

func main() {
	timeout := flag.Duration("timeout", 15*time.Second, "Overall timeout for provider checks")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	status := health.CheckAll(ctx, cfg)
	fmt.Print(status.String())
	if !status.OK {
		os.Exit(1)
	}
}
