package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluentvoice/tutorlive/pkg/live"
)

type options struct {
	model       string
	apiKey      string
	metricsAddr string
	debug       bool
}

func main() {
	os.Exit(runMain())
}

func runMain() int {
	// Best effort; the key usually lives in the environment already.
	_ = godotenv.Load()

	var opt options
	flag.StringVar(&opt.model, "model", "", "Live model name (default: the native-audio tutor model)")
	flag.StringVar(&opt.apiKey, "api-key", strings.TrimSpace(os.Getenv("GEMINI_API_KEY")), "Gemini API key (also reads GEMINI_API_KEY)")
	flag.StringVar(&opt.metricsAddr, "metrics-addr", "", "If set, serve Prometheus metrics on this address (e.g. :9090)")
	flag.BoolVar(&opt.debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if strings.TrimSpace(opt.apiKey) == "" {
		// GOOGLE_API_KEY works as an alias, same as the REST surface.
		opt.apiKey = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	}
	if strings.TrimSpace(opt.apiKey) == "" {
		fmt.Fprintln(os.Stderr, "--api-key is required (or set GEMINI_API_KEY)")
		return 2
	}

	level := slog.LevelInfo
	if opt.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if opt.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(opt.metricsAddr, mux); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := live.NewManager(logger)
	conv, err := manager.Start(ctx, live.Config{
		APIKey:  opt.apiKey,
		Model:   strings.TrimSpace(opt.model),
		Logger:  logger,
		OnEntry: printEntry,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start conversation:", err)
		if live.KindOf(err) == live.ErrAuth {
			return 2
		}
		return 1
	}
	fmt.Fprintln(os.Stderr, "listening... speak into the microphone (Ctrl-C to stop)")

	select {
	case <-ctx.Done():
		manager.Stop()
		return 0
	case <-conv.Done():
		// Session ended on its own (remote close or transport failure).
		manager.Stop()
		return 0
	}
}

func printEntry(entry live.Entry) {
	if entry.User != "" {
		fmt.Printf("[you] %s\n", entry.User)
	}
	if fb := entry.Feedback; fb != nil {
		fmt.Printf("[feedback] score=%.0f better: %s\n", fb.Score, fb.CorrectedPhrase)
		if fb.Explanation != "" {
			fmt.Printf("[feedback] %s\n", fb.Explanation)
		}
	}
	if entry.Model != "" {
		fmt.Printf("[tutor] %s\n", entry.Model)
	}
}
