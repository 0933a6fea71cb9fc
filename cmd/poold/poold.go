package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"swarmpool/internal/setup"
	"swarmpool/internal/swarm"
)

func main() {
	deps := setup.Init()
	deps.Log.Infof(
		"Starting pool daemon for [%s] signing as [%s]",
		deps.Env.PoolENS,
		deps.Operator.Address,
	)
	if deps.Mongo != nil {
		defer func() {
			if err := deps.Mongo.Disconnect(context.Background()); err != nil {
				deps.Log.Errorw("failed disconnecting from mongo", "error", err)
			}
		}()
	}

	core := swarm.CreateCore(deps)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		deps.Log.Info("Shutting down...")
		core.Stop()
	}()

	if err := core.Run(); err != nil {
		deps.Log.Fatalw("Daemon exited with error", "error", err)
	}
	deps.Transport.Close()
	if err := deps.Sidecar.Close(); err != nil {
		deps.Log.Errorw("failed closing sidecar", "error", err)
	}
}
