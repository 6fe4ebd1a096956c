// Package fileserver talks to the static file server that hosts source
// documents and generated artifacts. Links handed to users always use the
// public base URL; the internal base never leaks into responses.
package fileserver

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/mentora-ai/mentora/pkg/config"
	"github.com/mentora-ai/mentora/pkg/httpclient"
)

type Client struct {
	internalBase string
	publicBase   string
	httpClient   *httpclient.Client
}

type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *httpclient.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func New(cfg config.FileserverConfig, opts ...Option) *Client {
	public := cfg.PublicBase
	if public == "" {
		public = cfg.InternalBase
	}
	c := &Client{
		internalBase: strings.TrimRight(cfg.InternalBase, "/"),
		publicBase:   strings.TrimRight(public, "/"),
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
			httpclient.WithMaxRetries(2),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SourceURL turns a chunk's stored source URL into the link shown to users.
// Documents ingested with a content hash are served by the file server, so
// the hash wins over the stored URL. Hashless PDF links lose their extension
// for cleaner display.
func (c *Client) SourceURL(rawURL, hash string) string {
	if hash != "" {
		return c.publicBase + "/download/" + hash
	}
	if c.internalBase != "" && strings.HasPrefix(rawURL, c.internalBase) {
		return c.publicBase + strings.TrimPrefix(rawURL, c.internalBase)
	}
	if strings.HasSuffix(strings.ToLower(rawURL), ".pdf") {
		return rawURL[:len(rawURL)-4]
	}
	return rawURL
}

type uploadResponse struct {
	HashCode    string `json:"hash_code"`
	DownloadURL string `json:"download_url"`
	SavedAs     string `json:"saved_as"`
}

// Upload stores an artifact on the file server and returns its public
// download URL. The server addresses files by content hash, so the first 16
// hex chars of the payload's sha256 are sent along as custom_hash.
func (c *Client) Upload(ctx context.Context, filename string, content []byte, extension string) (string, error) {
	sum := sha256.Sum256(content)
	contentHash := hex.EncodeToString(sum[:])[:16]

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(content); err != nil {
		return "", err
	}
	if err := writer.WriteField("custom_hash", contentHash); err != nil {
		return "", err
	}
	if err := writer.WriteField("extension", extension); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	payload := body.Bytes()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.internalBase+"/upload", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fileserver upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("fileserver upload failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("fileserver upload: bad response: %w", err)
	}
	if parsed.DownloadURL == "" {
		return "", fmt.Errorf("fileserver upload: response missing download_url")
	}
	return c.publicBase + parsed.DownloadURL, nil
}

// UploadJSON marshals v and uploads it under the given name.
func (c *Client) UploadJSON(ctx context.Context, filename string, v any) (string, error) {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return c.Upload(ctx, filename, content, "json")
}
