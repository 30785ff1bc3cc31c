package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openfiberlab/gm8050-link/internal/gm8050"
	"github.com/openfiberlab/gm8050-link/internal/server"
)

func main() {
	configPath := flag.String("config", "/etc/gm8050/config.yaml", "Path to config file")
	listenAddr := flag.String("listen", "", "Override listen address (e.g. :8080)")
	portPath := flag.String("port", "", "Override serial port path (e.g. /dev/ttyUSB0)")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] gm8050d starting")

	cfg := server.LoadConfig(*configPath)
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if *portPath != "" {
		cfg.Device.PortPath = *portPath
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	dev := gm8050.New(gm8050.Config{
		PortPath:        cfg.Device.PortPath,
		BaudRate:        cfg.Device.BaudRate,
		ResponseTimeout: time.Duration(cfg.Device.ResponseTimeoutMs) * time.Millisecond,
		NoDataSilence:   time.Duration(cfg.Device.NoDataSilenceMs) * time.Millisecond,
	})
	defer dev.Close()

	// Connect in the background so the API comes up even while the
	// instrument is still booting or unplugged.
	go connectWithRetry(ctx, dev)

	srv := server.New(cfg, dev)
	if err := srv.Run(ctx); err != nil {
		log.Printf("[main] server exited: %v", err)
	}
}

// connectWithRetry attempts to open the serial link with exponential
// backoff: starts at 1s, doubles up to 60s, and keeps trying until the
// context is cancelled.
func connectWithRetry(ctx context.Context, dev *gm8050.Device) {
	delay := 1 * time.Second
	maxDelay := 60 * time.Second
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		attempt++
		if err := dev.Connect(); err != nil {
			log.Printf("[gm8050] connect attempt %d failed: %v (retry in %v)", attempt, err, delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
			continue
		}
		log.Printf("[gm8050] connected (attempt %d)", attempt)
		return
	}
}
