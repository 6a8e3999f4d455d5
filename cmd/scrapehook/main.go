package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/mattjoyce/scrapehook/internal/config"
	"github.com/mattjoyce/scrapehook/internal/events"
	"github.com/mattjoyce/scrapehook/internal/inbox"
	"github.com/mattjoyce/scrapehook/internal/lock"
	"github.com/mattjoyce/scrapehook/internal/log"
	"github.com/mattjoyce/scrapehook/internal/storage"
	"github.com/mattjoyce/scrapehook/internal/webhook"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage(os.Stderr)
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "serve":
		return runServe(args)
	case "submit":
		return runSubmit(args)
	case "sign":
		return runSign(args)
	case "verify":
		return runVerify(args)
	case "parse":
		return runParse(args)
	case "deliveries":
		return runDeliveriesNoun(args)
	case "doctor":
		return runDoctor(args)
	case "watch":
		return runWatch(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage(os.Stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `scrapehook - submit scrape jobs and receive their signed callbacks

Usage:
  scrapehook <command> [flags]

Commands:
  serve                 Run the callback receiver in the foreground
  submit                Submit a scrape job
  sign                  Sign a callback body (for testing receivers)
  verify                Verify a callback body against its signature headers
  parse                 Validate and decode a callback body
  deliveries list       List recorded deliveries
  deliveries show <id>  Show one recorded delivery
  doctor                Check configuration for delivery problems
  watch                 Live view of a running receiver's verdicts
  version               Show version information

Configuration is read from --config, $SCRAPEHOOK_CONFIG or ./scrapehook.yaml.
SCRAP_API_URL and SCRAP_API_KEY fill in anything the file leaves empty.
`)
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	info := currentVersionInfo()
	if *jsonOut {
		return printJSON(info)
	}

	fmt.Printf("scrapehook %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = readBuildSetting("vcs.revision")
	}
	if commit != "" {
		info.Commit = shortenCommit(commit)
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = readBuildSetting("vcs.time")
	}
	if t, err := time.Parse(time.RFC3339Nano, built); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}
	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return strings.TrimSpace(setting.Value)
		}
	}
	return ""
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	listen := fs.String("listen", "", "Override webhook.listen")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *listen != "" {
		cfg.Webhook.Listen = *listen
	}
	if cfg.Webhook.Secret == "" {
		fmt.Fprintf(os.Stderr, "No webhook secret configured (set webhook.secret or %s)\n", config.EnvAPIKey)
		return 1
	}
	maxBody, err := config.ParseMaxBodySize(cfg.Webhook.MaxBodySize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid webhook.max_body_size: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("scrapehook starting", "version", version, "config", cfg.Path)

	if lockPath := lock.PathFor(cfg.State.Path); lockPath != "" {
		pidLock, err := lock.Acquire(lockPath)
		if err != nil {
			logger.Error("failed to acquire PID lock (another instance may be running)", "path", lockPath, "error", err)
			return 1
		}
		defer pidLock.Release()
		logger.Info("acquired PID lock", "path", lockPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer db.Close()
	box := inbox.New(db, inbox.WithLogger(log.WithComponent("inbox")))
	if n, err := box.Count(ctx); err == nil {
		logger.Info("database opened", "path", cfg.State.Path, "deliveries", n)
	}
	hub := events.NewHub(256)

	srv := webhook.New(webhook.Config{
		Listen:      cfg.Webhook.Listen,
		Path:        cfg.Webhook.Path,
		Secret:      cfg.Webhook.Secret,
		MaxAge:      cfg.Webhook.MaxAge,
		MaxBodySize: maxBody,
		APIToken:    cfg.API.Token,
	}, box, log.WithComponent("webhook"),
		webhook.WithDeliveries(box),
		webhook.WithEvents(hub),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Info("scrapehook running (press Ctrl+C to stop)",
		"listen", cfg.Webhook.Listen,
		"path", cfg.Webhook.Path,
		"read_api", cfg.API.Token != "",
	)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			logger.Error("webhook server failed", "error", err)
			return 1
		}
	}

	logger.Info("scrapehook stopped")
	return 0
}

func printJSON(v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
		return 1
	}
	fmt.Println(string(data))
	return 0
}

// readBody returns the contents of path, or stdin when path is "-" or empty.
// Bytes are returned exactly as read since signatures cover the raw body.
func readBody(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
