package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const DefaultURL = "https://www.sharesansar.com/live-trading"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

// Scraper reads the live-trading page and extracts the quote table.
type Scraper struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	log     *logrus.Logger
}

func NewScraper(url string, log *logrus.Logger) *Scraper {
	if url == "" {
		url = DefaultURL
	}
	return &Scraper{
		url:     url,
		client:  &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
		log:     log,
	}
}

func (s *Scraper) FetchQuotes(ctx context.Context) ([]Quote, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch live trading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("live trading page returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	quotes, err := ParseTable(resp.Body)
	if err != nil {
		return nil, err
	}
	s.log.Debugf("scraped %d quotes from %s", len(quotes), s.url)
	return quotes, nil
}

// ParseTable extracts quotes from the rows of the table with id headFixed.
// Rows without a symbol or a parsable last traded price are skipped.
func ParseTable(r io.Reader) ([]Quote, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse live trading page: %w", err)
	}
	table := findByID(doc, "headFixed")
	if table == nil {
		return nil, fmt.Errorf("quote table not found")
	}

	quotes := []Quote{}
	for _, tr := range bodyRows(table) {
		cells := []string{}
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "td" {
				cells = append(cells, strings.TrimSpace(textOf(c)))
			}
		}
		q, ok := rowToQuote(cells)
		if !ok {
			continue
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// column order: id, symbol, ltp, point change, % change, open, high, low, volume, prev close
func rowToQuote(cells []string) (Quote, bool) {
	if len(cells) < 3 || cells[1] == "" {
		return Quote{}, false
	}
	ltp, err := parseNumber(cells[2])
	if err != nil {
		return Quote{}, false
	}
	q := Quote{Symbol: strings.ToUpper(cells[1]), LastTradedPrice: ltp}
	fields := []*decimal.Decimal{&q.PriceChange, &q.PercentChange, &q.Open, &q.High, &q.Low, &q.Volume, &q.PrevClose}
	for i, f := range fields {
		idx := i + 3
		if idx >= len(cells) {
			break
		}
		if v, err := parseNumber(cells[idx]); err == nil {
			*f = v
		}
	}
	return q, true
}

func parseNumber(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "%")
	return decimal.NewFromString(strings.TrimSpace(s))
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func bodyRows(table *html.Node) []*html.Node {
	rows := []*html.Node{}
	var walk func(n *html.Node, inBody bool)
	walk = func(n *html.Node, inBody bool) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "tbody":
				walk(c, true)
			case "tr":
				if inBody {
					rows = append(rows, c)
				}
			case "thead", "tfoot":
			default:
				walk(c, inBody)
			}
		}
	}
	walk(table, false)
	return rows
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textOf(c))
	}
	return sb.String()
}
