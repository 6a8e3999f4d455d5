package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/scrapehook/internal/config"
	"github.com/mattjoyce/scrapehook/internal/doctor"
	"github.com/mattjoyce/scrapehook/internal/event"
	"github.com/mattjoyce/scrapehook/internal/inbox"
	"github.com/mattjoyce/scrapehook/internal/log"
	"github.com/mattjoyce/scrapehook/internal/scrape"
	"github.com/mattjoyce/scrapehook/internal/signature"
	"github.com/mattjoyce/scrapehook/internal/storage"
	"github.com/mattjoyce/scrapehook/internal/tui/watch"
	"github.com/mattjoyce/scrapehook/internal/webhook"
)

// exitInvalid is returned by verify and parse when the input is rejected,
// as opposed to 1 for usage or I/O errors.
const exitInvalid = 2

// envAPIToken is the default for watch --token; api.token is used when both are empty.
const envAPIToken = "SCRAPEHOOK_API_TOKEN"

func runSubmit(args []string) int {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	target := fs.String("url", "", "URL to scrape (required)")
	prompt := fs.String("prompt", "", "Instruction for the scraper (required)")
	callback := fs.String("callback", "", "Callback URL that receives the result")
	id := fs.String("id", "", "Job id echoed back as the callback's webhook field (default: random)")
	jsonOut := fs.Bool("json", false, "Output the acknowledgement as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)

	client := scrape.NewClient(cfg.Scrape.APIURL, cfg.Scrape.APIKey,
		scrape.WithHTTPClient(newHTTPClient(cfg.Scrape.Timeout)),
		scrape.WithLogger(log.WithComponent("scrape")),
	)

	ctx, cancel := signalContext()
	defer cancel()

	resp, err := client.Scrape(ctx, scrape.Request{
		URL:         *target,
		Prompt:      *prompt,
		CallbackURL: *callback,
		ID:          *id,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Submit failed: %v\n", err)
		var se *scrape.Error
		if errors.As(err, &se) && se.IsRetryable() {
			fmt.Fprintln(os.Stderr, "The failure looks transient; retrying later may succeed.")
		}
		return 1
	}

	if *jsonOut {
		return printJSON(map[string]any{
			"id":     resp.ID,
			"status": resp.StatusCode,
			"body":   resp.Body,
		})
	}
	renderField(os.Stdout, "id", resp.ID)
	renderField(os.Stdout, "status", strconv.Itoa(resp.StatusCode))
	if len(resp.Body) > 0 {
		renderField(os.Stdout, "response", string(resp.Body))
	}
	return 0
}

func runSign(args []string) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	secret := fs.String("secret", "", "Signing secret (default: webhook.secret)")
	timestamp := fs.String("timestamp", "", "Epoch milliseconds (default: now)")
	file := fs.String("file", "-", "Body file, or - for stdin")
	jsonOut := fs.Bool("json", false, "Output headers as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	key, code := resolveSecret(*configPath, *secret)
	if code != 0 {
		return code
	}
	body, err := readBody(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read body: %v\n", err)
		return 1
	}
	ts := *timestamp
	if ts == "" {
		ts = strconv.FormatInt(time.Now().UnixMilli(), 10)
	}

	sig := signature.Sign(body, key, ts)
	if *jsonOut {
		return printJSON(map[string]string{
			webhook.HeaderSignature: sig,
			webhook.HeaderTimestamp: ts,
		})
	}
	fmt.Printf("%s: %s\n", webhook.HeaderSignature, sig)
	fmt.Printf("%s: %s\n", webhook.HeaderTimestamp, ts)
	return 0
}

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	secret := fs.String("secret", "", "Verification secret (default: webhook.secret)")
	sig := fs.String("signature", "", "Value of the x-webhook-signature header (required)")
	timestamp := fs.String("timestamp", "", "Value of the x-webhook-timestamp header (required)")
	maxAge := fs.Duration("max-age", webhook.DefaultMaxAge, "Accepted clock skew")
	file := fs.String("file", "-", "Body file, or - for stdin")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	key, code := resolveSecret(*configPath, *secret)
	if code != 0 {
		return code
	}
	body, err := readBody(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read body: %v\n", err)
		return 1
	}

	ok, err := webhook.VerifyWebhook(webhook.VerifyOptions{
		Body:      body,
		Signature: *sig,
		Timestamp: *timestamp,
		Secret:    key,
		MaxAge:    *maxAge,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot verify: %v\n", err)
		return 1
	}
	if !ok {
		renderVerdict(os.Stdout, false, "signature mismatch or timestamp outside the window")
		return exitInvalid
	}
	renderVerdict(os.Stdout, true, "")
	return 0
}

func runParse(args []string) int {
	fs := flag.NewFlagSet("parse", flag.ContinueOnError)
	file := fs.String("file", "-", "Body file, or - for stdin")
	jsonOut := fs.Bool("json", false, "Output the decoded envelope as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	body, err := readBody(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read body: %v\n", err)
		return 1
	}

	env, err := event.ParseEvent(body)
	if err != nil {
		renderVerdict(os.Stdout, false, err.Error())
		return exitInvalid
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"webhook": env.Webhook,
			"type":    env.Event.Type(),
			"data":    env.Event,
			"headers": env.Headers,
		})
	}
	renderEnvelope(os.Stdout, env)
	return 0
}

func runDeliveriesNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Fprintln(os.Stderr, "Usage: scrapehook deliveries <list|show> [flags]")
		return 1
	}

	action := args[0]
	actionArgs := args[1:]
	switch action {
	case "list":
		return runDeliveriesList(actionArgs)
	case "show":
		return runDeliveriesShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown deliveries action: %s\n", action)
		return 1
	}
}

func runDeliveriesList(args []string) int {
	fs := flag.NewFlagSet("deliveries list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	limit := fs.Int("limit", inbox.DefaultListLimit, "Maximum deliveries to show")
	eventType := fs.String("type", "", "Only show one event type (links, scraped, explore)")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	box, closeFn, code := openInbox(*configPath)
	if code != 0 {
		return code
	}
	defer closeFn()

	list, err := box.List(context.Background(), inbox.ListOptions{Limit: *limit, EventType: *eventType})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list deliveries: %v\n", err)
		return 1
	}
	if *jsonOut {
		if list == nil {
			list = []*inbox.Delivery{}
		}
		return printJSON(list)
	}
	renderDeliveryTable(os.Stdout, list)
	return 0
}

func runDeliveriesShow(args []string) int {
	fs := flag.NewFlagSet("deliveries show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: scrapehook deliveries show <id> [--json]")
		return 1
	}

	box, closeFn, code := openInbox(*configPath)
	if code != 0 {
		return code
	}
	defer closeFn()

	d, err := box.Get(context.Background(), fs.Arg(0))
	if errors.Is(err, inbox.ErrDeliveryNotFound) {
		fmt.Fprintf(os.Stderr, "Delivery not found: %s\n", fs.Arg(0))
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load delivery: %v\n", err)
		return 1
	}
	if *jsonOut {
		return printJSON(d)
	}
	renderDelivery(os.Stdout, d)
	return 0
}

func openInbox(configPath string) (*inbox.Inbox, func(), int) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, nil, 1
	}
	db, err := storage.OpenSQLite(context.Background(), cfg.State.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return nil, nil, 1
	}
	return inbox.New(db), func() { _ = db.Close() }, 0
}

// resolveSecret prefers an explicit --secret over the configured one.
func resolveSecret(configPath, explicit string) (string, int) {
	if explicit != "" {
		return explicit, 0
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return "", 1
	}
	if cfg.Webhook.Secret == "" {
		fmt.Fprintf(os.Stderr, "No secret: pass --secret, set webhook.secret or %s\n", config.EnvAPIKey)
		return "", 1
	}
	return cfg.Webhook.Secret, 0
}

func isHelpToken(s string) bool {
	return s == "help" || s == "--help" || s == "-h"
}

func runDoctor(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	strict := fs.Bool("strict", false, "Treat warnings as errors")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	result := doctor.New(cfg).Validate()
	failed := !result.Valid || (*strict && len(result.Warnings) > 0)

	if *jsonOut {
		if code := printJSON(result); code != 0 {
			return code
		}
	} else {
		renderDoctorResult(os.Stdout, result)
	}
	if failed {
		return exitInvalid
	}
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	baseURL := fs.String("url", "", "Receiver base URL (default: http://<webhook.listen>)")
	token := fs.String("token", os.Getenv(envAPIToken), "Bearer token for /events (default: api.token)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *token == "" {
		*token = cfg.API.Token
	}
	if *token == "" {
		fmt.Fprintf(os.Stderr, "Error: API token required. Use --token, api.token or %s.\n", envAPIToken)
		return 1
	}
	if *baseURL == "" {
		*baseURL = "http://" + cfg.Webhook.Listen
	}

	if _, err := tea.NewProgram(watch.New(*baseURL, *token)).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}
