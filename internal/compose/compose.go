// Package compose turns a feed entry into a bounded-length status with
// attached media references.
package compose

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"feedtoot/internal/config"
	"feedtoot/internal/feed"
)

// ErrTemplate marks a template with an unknown placeholder. It is fatal to
// the whole run: the same template is rendered for every entry, so the
// failure would just recur.
var ErrTemplate = errors.New("bad template placeholder")

var (
	nbspRe          = regexp.MustCompile(`\x{00A0}+`)
	multiSpaceRe    = regexp.MustCompile("  +")
	trailingSpaceRe = regexp.MustCompile(" +\n")
	multiNewlineRe  = regexp.MustCompile("\n\n\n+")
	placeholderRe   = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)
)

var stripPolicy = bluemonday.StrictPolicy()

// Post is the composed status: final text plus image source URLs, ready to
// submit.
type Post struct {
	Text      string
	MediaRefs []string
}

// Compose renders the template for one entry, truncates the result to the
// configured length budget, appends hashtags, and collects image enclosures.
func Compose(entry feed.Entry, cfg config.Config) (Post, error) {
	var blocks []string
	for _, b := range entry.ContentBlocks {
		if b.MIME != "text/html" {
			continue
		}
		blocks = append(blocks, HTMLText(b.Value))
	}

	text, err := Render(cfg.Template, map[string]string{
		"title":   Cleanup(entry.Title),
		"summary": HTMLText(entry.SummaryHTML),
		"content": strings.Join(blocks, "\n\n"),
		"link":    entry.Link,
	})
	if err != nil {
		return Post{}, err
	}

	// Reserve room for the hashtags and the blank line separating them.
	// The cut is a hard rune-count cut, not word-aware.
	budget := cfg.MaxLength - utf8.RuneCountInString(cfg.Hashtags) - 2
	text = firstNRunes(text, budget)
	text += "\n\n" + cfg.Hashtags

	return Post{Text: text, MediaRefs: mediaRefs(entry, cfg.MaxImages)}, nil
}

// Render substitutes {title}, {summary}, {content}, and {link} in the
// template. Any other placeholder is an ErrTemplate.
func Render(template string, vars map[string]string) (string, error) {
	var unknown string
	out := placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		val, ok := vars[name]
		if !ok && unknown == "" {
			unknown = name
		}
		return val
	})
	if unknown != "" {
		return "", fmt.Errorf("%w: {%s}", ErrTemplate, unknown)
	}
	return out, nil
}

// Cleanup normalizes whitespace: non-breaking-space runs become a single
// space, space runs collapse to one, trailing spaces before newlines are
// stripped, 3+ newlines collapse to 2, and the result is trimmed. Pure and
// idempotent.
func Cleanup(text string) string {
	text = nbspRe.ReplaceAllString(text, " ")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = trailingSpaceRe.ReplaceAllString(text, "\n")
	text = multiNewlineRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// HTMLText extracts the visible text of an HTML fragment and cleans it up.
func HTMLText(fragment string) string {
	text := stripPolicy.Sanitize(fragment)
	return Cleanup(html.UnescapeString(text))
}

func mediaRefs(entry feed.Entry, max int) []string {
	var refs []string
	for _, enc := range entry.Enclosures {
		if len(refs) == max {
			break
		}
		if enc.Rel != "enclosure" || !strings.Contains(enc.Type, "image/") {
			continue
		}
		refs = append(refs, enc.URL)
	}
	return refs
}

func firstNRunes(s string, n int) string {
	if n <= 0 || s == "" {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
