// Package publish submits composed posts to the social network, attaching
// whatever media it can fetch.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"feedtoot/internal/compose"
	"feedtoot/internal/mastodon"
)

const mediaFetchTimeout = 30 * time.Second

// ErrSubmit marks a failed status submission. It is fatal to the entry and
// stops the batch; it is not retried here — external scheduling owns
// retries.
var ErrSubmit = errors.New("status submit failed")

// Poster is the slice of the Mastodon client the publisher needs.
type Poster interface {
	UploadMedia(ctx context.Context, data []byte, contentType string) (mastodon.Media, error)
	PostStatus(ctx context.Context, sr mastodon.StatusRequest) (mastodon.Status, error)
}

// Result identifies the submitted status. Zero on dry runs.
type Result struct {
	ID  string
	URL string
}

type Publisher struct {
	poster Poster
	fetch  *http.Client
	dryRun bool
}

// New returns a publisher. poster may be nil only when dryRun is set; a
// dry run performs no network operation at all.
func New(poster Poster, dryRun bool) (*Publisher, error) {
	if poster == nil && !dryRun {
		return nil, errors.New("publish: poster is required unless dry-run")
	}
	return &Publisher{
		poster: poster,
		fetch:  &http.Client{Timeout: mediaFetchTimeout},
		dryRun: dryRun,
	}, nil
}

// Publish uploads the post's media best-effort and submits the status.
// A failed image fetch or upload skips that image and continues; a failed
// submission returns ErrSubmit. The watermark is never touched here —
// advancement is the caller's call, after Publish returns successfully.
func (p *Publisher) Publish(ctx context.Context, post compose.Post, visibility, language string) (Result, error) {
	if p.dryRun {
		slog.Info("dry-run: skipping publish", "media", len(post.MediaRefs))
		return Result{}, nil
	}

	var mediaIDs []string
	for _, ref := range post.MediaRefs {
		media, err := p.uploadOne(ctx, ref)
		if err != nil {
			slog.Warn("skipping image", "url", ref, "error", err)
			continue
		}
		slog.Debug("image uploaded", "url", ref, "media_id", media.ID)
		mediaIDs = append(mediaIDs, media.ID)
	}

	status, err := p.poster.PostStatus(ctx, mastodon.StatusRequest{
		Text:       post.Text,
		Visibility: visibility,
		MediaIDs:   mediaIDs,
		Language:   language,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSubmit, err)
	}

	return Result{ID: status.ID, URL: status.URL}, nil
}

func (p *Publisher) uploadOne(ctx context.Context, ref string) (mastodon.Media, error) {
	data, contentType, err := p.fetchMedia(ctx, ref)
	if err != nil {
		return mastodon.Media{}, fmt.Errorf("fetch media: %w", err)
	}

	media, err := p.poster.UploadMedia(ctx, data, contentType)
	if err != nil {
		return mastodon.Media{}, fmt.Errorf("upload media: %w", err)
	}
	return media, nil
}

func (p *Publisher) fetchMedia(ctx context.Context, ref string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := p.fetch.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
