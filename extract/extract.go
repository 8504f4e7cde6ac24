package extract

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
)

// OptionLabels parses an HTML fragment and returns the trimmed text of every
// element matching selector, in document order.
func OptionLabels(fragment, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, err
	}
	var labels []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		labels = append(labels, strings.Join(strings.Fields(s.Text()), " "))
	})
	return labels, nil
}

// Converter renders result panels as Markdown. It is goroutine-safe.
type Converter struct {
	conv *converter.Converter
}

// NewConverter creates a Converter with the base, commonmark and table
// plugins. The base plugin strips script, style and other non-content nodes.
func NewConverter() *Converter {
	return &Converter{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		),
	}
}

// SummaryMarkdown converts the results summary HTML to Markdown.
// Relative links resolve against domain.
func (c *Converter) SummaryMarkdown(fragment, domain string) (string, error) {
	md, err := c.conv.ConvertString(fragment, converter.WithDomain(domain))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}

// ResultExtractor finds console messages carrying a results marker and pulls
// out the JSON object or array literal that follows it.
type ResultExtractor struct {
	marker string
	re     *regexp.Regexp
}

// NewResultExtractor compiles the extraction pattern for marker.
// Quotes, commas and spaces between the marker and the literal are skipped,
// so both `DETAILED_RESULTS [..]` and `"DETAILED_RESULTS", "[..]"` match.
func NewResultExtractor(marker string) *ResultExtractor {
	return &ResultExtractor{
		marker: marker,
		re:     regexp.MustCompile(`(?s)` + regexp.QuoteMeta(marker) + `[\s"',:\\]*(\{.*\}|\[.*\])`),
	}
}

// Marker returns the marker text.
func (e *ResultExtractor) Marker() string { return e.marker }

// Match reports whether message contains the marker.
func (e *ResultExtractor) Match(message string) bool {
	return strings.Contains(message, e.marker)
}

// Extract returns the trailing JSON literal after the marker.
// The literal is returned as found; it is not validated.
func (e *ResultExtractor) Extract(message string) (string, bool) {
	m := e.re.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return m[1], true
}
