package main

import (
	"context"

	"parkwatch-backend/cmd/parkwatch/commands"
	"parkwatch-backend/lib/telemetry"
)

func main() {
	ctx := context.Background()
	telemetry.SetupFromEnv(ctx, "parkwatch")
	telemetry.InitSlog(false)
	commands.ExecuteContext(ctx)
}
