// Package preflight checks that a quiz page carries the elements the walker
// depends on before a browser is launched. The check is advisory: controls
// rendered by script are absent from the served HTML, so a miss is only a
// warning.
package preflight

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/quizwalker/config"
	"golang.org/x/net/html"
)

// Report is the outcome of one check.
type Report struct {
	URL        string   `json:"url"`
	StatusCode int      `json:"status_code"`
	Title      string   `json:"title,omitempty"`
	Found      []string `json:"found"`
	Missing    []string `json:"missing"`
}

// OK reports whether every checked element was present.
func (r *Report) OK() bool { return len(r.Missing) == 0 }

// Checker fetches the quiz page over plain HTTP and looks for the static
// controls of the page.
type Checker struct {
	cfg       config.PreflightConfig
	proxy     string
	selectors map[string]string
	log       *slog.Logger
}

// New creates a Checker. Only controls present in the served markup are
// checked; the option list and the summary are filled in by script.
func New(cfg config.PreflightConfig, proxy string, sel config.SelectorConfig, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		cfg:   cfg,
		proxy: proxy,
		selectors: map[string]string{
			"start":    sel.StartButton,
			"question": sel.QuestionText,
			"next":     sel.NextButton,
			"submit":   sel.SubmitButton,
			"results":  sel.Results,
		},
		log: logger,
	}
}

// Check fetches quizURL and reports which controls are present. Missing
// controls are logged at warn; the returned error covers only fetch and
// parse failures.
func (c *Checker) Check(ctx context.Context, quizURL string) (*Report, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	status, body, err := fetch(ctx, quizURL, c.proxy)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("preflight: HTTP %d for %s", status, quizURL)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("preflight: parse HTML: %w", err)
	}

	report := &Report{
		URL:        quizURL,
		StatusCode: status,
		Title:      pageTitle(doc),
		Found:      []string{},
		Missing:    []string{},
	}

	names := make([]string, 0, len(c.selectors))
	for name := range c.selectors {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sel, err := cascadia.Compile(c.selectors[name])
		if err != nil {
			return nil, fmt.Errorf("preflight: %s selector: %w", name, err)
		}
		if sel.MatchFirst(doc) != nil {
			report.Found = append(report.Found, name)
		} else {
			report.Missing = append(report.Missing, name)
		}
	}

	if report.OK() {
		c.log.Info("preflight passed", "url", quizURL, "title", report.Title)
	} else {
		c.log.Warn("preflight: quiz controls missing from served HTML",
			"url", quizURL,
			"missing", strings.Join(report.Missing, ","),
		)
	}
	return report, nil
}

var titleSel = cascadia.MustCompile("title")

func pageTitle(doc *html.Node) string {
	n := titleSel.MatchFirst(doc)
	if n == nil || n.FirstChild == nil {
		return ""
	}
	return strings.TrimSpace(n.FirstChild.Data)
}
