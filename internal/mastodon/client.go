// Package mastodon is a minimal client for the two Mastodon API calls the
// publish pipeline needs: media upload and status submission.
package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

const (
	requestTimeout = 60 * time.Second
	userAgent      = "feedtoot/1.0"

	// Env var names the credentials are read from.
	EnvClientID     = "MASTODON_CLIENT_ID"
	EnvClientSecret = "MASTODON_CLIENT_SECRET"
	EnvAccessToken  = "MASTODON_ACCESS_TOKEN"
	EnvAPIBaseURL   = "MASTODON_API_BASE_URL"
)

// Credentials is the opaque token triple issued by a Mastodon instance.
// Only the access token is sent on requests; the id/secret pair is kept so
// the credential surface matches what instances hand out.
type Credentials struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
}

// Media is the instance's handle for one uploaded attachment.
type Media struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Status is a submitted post.
type Status struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// StatusRequest is one status submission.
type StatusRequest struct {
	Text       string
	Visibility string
	MediaIDs   []string
	Language   string
}

type Client struct {
	baseURL string
	creds   Credentials
	client  *http.Client
}

func New(baseURL string, creds Credentials) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("mastodon: base URL is required")
	}
	if strings.TrimSpace(creds.AccessToken) == "" {
		return nil, errors.New("mastodon: access token is required")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		client:  &http.Client{Timeout: requestTimeout},
	}, nil
}

// UploadMedia pushes raw attachment bytes to the instance and returns its
// media handle. A 202 means the instance is still processing the upload;
// the returned id is already usable on a status.
func (c *Client) UploadMedia(ctx context.Context, data []byte, contentType string) (Media, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="media"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		return Media{}, fmt.Errorf("create multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return Media{}, fmt.Errorf("write multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Media{}, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/media", &buf)
	if err != nil {
		return Media{}, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var media Media
	if err := c.do(req, &media); err != nil {
		return Media{}, fmt.Errorf("upload media: %w", err)
	}
	return media, nil
}

// PostStatus submits one status with any previously uploaded media.
func (c *Client) PostStatus(ctx context.Context, sr StatusRequest) (Status, error) {
	form := url.Values{}
	form.Set("status", sr.Text)
	form.Set("visibility", sr.Visibility)
	for _, id := range sr.MediaIDs {
		form.Add("media_ids[]", id)
	}
	if sr.Language != "" {
		form.Set("language", sr.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/statuses",
		strings.NewReader(form.Encode()))
	if err != nil {
		return Status{}, fmt.Errorf("create status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var status Status
	if err := c.do(req, &status); err != nil {
		return Status{}, fmt.Errorf("post status: %w", err)
	}
	return status, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.creds.AccessToken)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
