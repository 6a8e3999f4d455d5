// Package doctor checks a scrapehook configuration for mistakes that load
// cleanly but break callback delivery at runtime.
package doctor

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/mattjoyce/scrapehook/internal/config"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

const (
	minSecretLength = 16
	minMaxAge       = 30 * time.Second
	maxMaxAge       = 15 * time.Minute
)

// Doctor validates a loaded configuration.
type Doctor struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateState(r)
	d.validateWebhook(r)
	d.validateScrape(r)
	d.warnReplayWindow(r)
	d.warnExposure(r)
	d.warnSecretMismatch(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateState(r *Result) {
	switch d.cfg.State.Path {
	case "":
		d.addError(r, "state", "state.path", "state.path is required")
	case ":memory:":
		d.addWarning(r, "state", "state.path", "in-memory state: deliveries are lost on restart")
	}
}

func (d *Doctor) validateWebhook(r *Result) {
	wh := d.cfg.Webhook
	if wh.Secret == "" {
		d.addError(r, "webhook", "webhook.secret",
			fmt.Sprintf("no secret configured; set webhook.secret or %s", config.EnvAPIKey))
	} else if len(wh.Secret) < minSecretLength {
		d.addWarning(r, "webhook", "webhook.secret",
			fmt.Sprintf("secret is shorter than %d characters", minSecretLength))
	}

	if _, _, err := net.SplitHostPort(wh.Listen); err != nil {
		d.addError(r, "webhook", "webhook.listen", fmt.Sprintf("invalid listen address %q: %v", wh.Listen, err))
	}
}

func (d *Doctor) validateScrape(r *Result) {
	sc := d.cfg.Scrape
	if sc.APIURL == "" {
		d.addWarning(r, "scrape", "scrape.api_url",
			fmt.Sprintf("not set; submit is unavailable (set scrape.api_url or %s)", config.EnvAPIURL))
		return
	}

	u, err := url.Parse(sc.APIURL)
	if err != nil || u.Host == "" {
		d.addError(r, "scrape", "scrape.api_url", fmt.Sprintf("invalid url %q", sc.APIURL))
		return
	}
	if u.Scheme != "https" {
		d.addWarning(r, "scrape", "scrape.api_url", "api key is sent over plain http")
	}
	if sc.APIKey == "" {
		d.addError(r, "scrape", "scrape.api_key",
			fmt.Sprintf("api_url is set but no api key; set scrape.api_key or %s", config.EnvAPIKey))
	}
}

func (d *Doctor) warnReplayWindow(r *Result) {
	maxAge := d.cfg.Webhook.MaxAge
	switch {
	case maxAge > maxMaxAge:
		d.addWarning(r, "webhook", "webhook.max_age",
			fmt.Sprintf("%s widens the replay window beyond %s", maxAge, maxMaxAge))
	case maxAge > 0 && maxAge < minMaxAge:
		d.addWarning(r, "webhook", "webhook.max_age",
			fmt.Sprintf("%s leaves little room for clock skew", maxAge))
	}
}

// warnExposure flags a read API reachable from other hosts.
func (d *Doctor) warnExposure(r *Result) {
	host, _, err := net.SplitHostPort(d.cfg.Webhook.Listen)
	if err != nil {
		return
	}
	public := host == "" || host == "0.0.0.0" || host == "::"
	token := d.cfg.API.Token

	if token == "" {
		d.addWarning(r, "api", "api.token", "not set; delivery API and event stream are disabled")
		return
	}
	if public && len(token) < minSecretLength {
		d.addWarning(r, "api", "api.token",
			fmt.Sprintf("listening on all interfaces with a token shorter than %d characters", minSecretLength))
	}
	if strings.EqualFold(token, d.cfg.Webhook.Secret) {
		d.addWarning(r, "api", "api.token", "api.token reuses the webhook secret")
	}
}

// warnSecretMismatch catches a receiver that will reject every callback:
// the service signs with the API key used to submit.
func (d *Doctor) warnSecretMismatch(r *Result) {
	key := d.cfg.Scrape.APIKey
	secret := d.cfg.Webhook.Secret
	if key != "" && secret != "" && key != secret {
		d.addWarning(r, "webhook", "webhook.secret",
			"differs from scrape.api_key; callbacks for jobs submitted with this key will fail verification")
	}
}
