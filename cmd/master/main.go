// Command master runs the distributed I/O simulator's controller process:
// it loads the channel catalog, drives the scheduled command pipeline,
// and exposes a line-oriented operator console standing in for the
// out-of-scope GUI (spec.md §1).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PineWarbler/iosim-go/internal/busx"
	"github.com/PineWarbler/iosim-go/internal/catalog"
	"github.com/PineWarbler/iosim-go/internal/console"
	"github.com/PineWarbler/iosim-go/internal/config"
	"github.com/PineWarbler/iosim-go/internal/logx"
	"github.com/PineWarbler/iosim-go/internal/scheduler"
	"github.com/PineWarbler/iosim-go/internal/transport"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "master.json", "path to master config JSON")
	addr := flag.String("addr", "", "override node address (host:port)")
	verbose := flag.Bool("verbose", false, "enable debug logging regardless of config")
	flag.Parse()

	cfg, err := config.LoadMaster(*configPath)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		return 1
	}

	log := logx.New("master", *verbose || cfg.RuntimeSettings.EnableVerboseLog)

	cat, err := catalog.Load(cfg.Signals, catalog.DefaultSlotTable)
	if err != nil {
		log.Error().Err(err).Msg("catalog load failed")
		return 1
	}

	nodeAddr := "192.168.80.1:5000"
	if *addr != "" {
		nodeAddr = *addr
	}

	sched := scheduler.New()
	bus := busx.NewBus(32)
	resultsConn := bus.NewConnection("transport")
	consoleConn := bus.NewConnection("console")

	worker := transport.New(nodeAddr, sched, resultsConn)
	if cfg.RuntimeSettings.SocketTimeoutS > 0 {
		worker.SocketTimeout = time.Duration(cfg.RuntimeSettings.SocketTimeoutS) * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutting down")
		cancel()
	}()

	go worker.Run(ctx)

	con := console.New(cat, sched, consoleConn, log, os.Stdout)
	go con.WatchResults()
	con.Run(os.Stdin)

	return 0
}
