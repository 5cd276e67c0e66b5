// Package feed fetches a syndication feed and maps it into publishable entries.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	fetchTimeout = 30 * time.Second
	userAgent    = "feedtoot/1.0 (+https://github.com/feedtoot/feedtoot)"
)

// ErrFetch marks a feed that could not be retrieved. The run aborts with a
// nonzero exit and no state mutation.
var ErrFetch = errors.New("feed fetch failed")

// ContentBlock is one content element of an entry, in feed order.
type ContentBlock struct {
	MIME  string
	Value string
}

// Enclosure is a feed-declared attached resource.
type Enclosure struct {
	Rel  string
	Type string
	URL  string
}

// Entry is one feed item. Immutable once fetched. PublishedAt is unix
// seconds UTC so every comparison in the pipeline is a plain integer
// comparison.
type Entry struct {
	Title         string
	SummaryHTML   string
	ContentBlocks []ContentBlock
	Link          string
	PublishedAt   int64
	Enclosures    []Enclosure
}

// Fetch retrieves the feed URL and parses it into entries. Any non-200
// response is an ErrFetch.
func Fetch(ctx context.Context, feedURL string) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", userAgent)

	client := &http.Client{Timeout: fetchTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrFetch, feedURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetch, feedURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}

	return Parse(body)
}

// Parse decodes raw feed bytes into entries. Items without a parseable
// publish time are dropped; the selector could never order them.
func Parse(data []byte) ([]Entry, error) {
	parsed, err := gofeed.NewParser().ParseString(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parse feed: %v", ErrFetch, err)
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		published := itemPublishedTime(item)
		if published.IsZero() {
			slog.Debug("dropping entry without publish time", "title", item.Title, "link", item.Link)
			continue
		}
		entries = append(entries, entryFromItem(item, published))
	}
	return entries, nil
}

func entryFromItem(item *gofeed.Item, published time.Time) Entry {
	e := Entry{
		Title:       item.Title,
		SummaryHTML: item.Description,
		Link:        item.Link,
		PublishedAt: published.UTC().Unix(),
	}

	// gofeed normalizes both Atom <content> and RSS <content:encoded>
	// into a single HTML string.
	if item.Content != "" {
		e.ContentBlocks = []ContentBlock{{MIME: "text/html", Value: item.Content}}
	}

	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		e.Enclosures = append(e.Enclosures, Enclosure{
			Rel:  "enclosure",
			Type: enc.Type,
			URL:  enc.URL,
		})
	}
	return e
}

func itemPublishedTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}
