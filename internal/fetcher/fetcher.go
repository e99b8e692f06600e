// Package fetcher downloads a portal listings feed and converts its items
// into properties.
package fetcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"props_bot/internal/model"
)

// Namespace is the feed extension prefix carrying listing attributes.
const Namespace = "re"

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads and parses listings feeds.
type Fetcher struct {
	client  HTTPClient
	timeout time.Duration
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{
		client:  client,
		timeout: 30 * time.Second,
	}
}

// Fetch downloads and parses a feed from the given URL.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "PropsBot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// Listings fetches url and returns the properties it describes.
func (f *Fetcher) Listings(ctx context.Context, url string) ([]model.Property, error) {
	feed, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return ToProperties(feed.Items), nil
}

// ItemGUID returns the GUID for a feed item.
// If the item has no GUID, a SHA-256 hash of title+link is used.
func ItemGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}

// ToProperties converts feed items into properties. Items without a
// positive price are skipped.
func ToProperties(items []*gofeed.Item) []model.Property {
	var out []model.Property
	for _, item := range items {
		p, ok := toProperty(item)
		if !ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

func toProperty(item *gofeed.Item) (model.Property, bool) {
	attrs := item.Extensions[Namespace]

	price := attrFloat(attrs, "price")
	if price <= 0 {
		return model.Property{}, false
	}

	p := model.Property{
		ID:               attr(attrs, "id"),
		Title:            item.Title,
		Operation:        model.Operation(strings.ToLower(attr(attrs, "operation"))),
		Type:             model.PropertyType(strings.ToLower(attr(attrs, "type"))),
		Price:            price,
		Currency:         model.Currency(strings.ToUpper(attr(attrs, "currency"))),
		AreaM2:           attrFloat(attrs, "area"),
		Bedrooms:         attrInt(attrs, "bedrooms"),
		Bathrooms:        attrInt(attrs, "bathrooms"),
		Parking:          attrInt(attrs, "parking"),
		AgeYears:         attrInt(attrs, "age"),
		Neighborhood:     attr(attrs, "neighborhood"),
		Amenities:        attrList(attrs, "amenity"),
		IsOpportunity:    attr(attrs, "opportunity") == "true",
		OpportunityScore: attrFloat(attrs, "score"),
		Link:             item.Link,
	}
	if p.ID == "" {
		p.ID = ItemGUID(item)
	}
	if p.Currency == "" {
		p.Currency = model.CurrencyUSD
	}
	if item.PublishedParsed != nil {
		p.PublishedAt = item.PublishedParsed.UTC()
	}
	return p, true
}

func attr(attrs map[string][]ext.Extension, name string) string {
	vals := attrs[name]
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0].Value)
}

func attrList(attrs map[string][]ext.Extension, name string) []string {
	var out []string
	for _, v := range attrs[name] {
		if s := strings.TrimSpace(v.Value); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func attrFloat(attrs map[string][]ext.Extension, name string) float64 {
	v, err := strconv.ParseFloat(attr(attrs, name), 64)
	if err != nil {
		return 0
	}
	return v
}

func attrInt(attrs map[string][]ext.Extension, name string) int {
	v, err := strconv.Atoi(attr(attrs, name))
	if err != nil {
		return 0
	}
	return v
}
