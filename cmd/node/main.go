// Command node runs the distributed I/O simulator's gateway process: it
// accepts batches over TCP, dispatches each entry to a simulated driver
// through the Module Registry, and replies with collected values and
// errors (spec.md §1).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PineWarbler/iosim-go/internal/config"
	"github.com/PineWarbler/iosim-go/internal/dispatch"
	"github.com/PineWarbler/iosim-go/internal/executor"
	"github.com/PineWarbler/iosim-go/internal/logx"
	"github.com/PineWarbler/iosim-go/internal/registry"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "node.json", "path to node config JSON")
	listen := flag.String("listen", "", "override listen address (host:port)")
	verbose := flag.Bool("verbose", false, "enable debug logging regardless of config")
	flag.Parse()

	cfg, err := config.LoadNode(*configPath)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		return 1
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}

	log := logx.New("node", *verbose || cfg.RuntimeSettings.EnableVerboseLog)

	state := dispatch.NewNodeState(cfg.RuntimeSettings.ErrorStackMaxLen)
	reg := registry.New()
	exec := executor.New(state, reg, cfg.RuntimeSettings.AiLPFBoxcarLength)
	srv := dispatch.NewServer(cfg.ListenAddr, state, reg)
	srv.AcceptTimeout = time.Duration(cfg.AcceptTimeoutMs) * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutting down")
		cancel()
		state.Stop()
	}()

	go exec.Run()

	log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
	if err := srv.Serve(ctx); err != nil {
		log.Error().Err(err).Msg("bind failed")
		state.Stop()
		reg.ReleaseAll()
		return 1
	}

	state.Stop()
	reg.ReleaseAll()
	return 0
}
