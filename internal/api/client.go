// Package api uploads exported session recordings to the range server.
package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	healthPath = "/healthcheck"
	uploadPath = "/api/v1/sessions/add"
)

// UploadMetadata describes a recording sent alongside the file.
type UploadMetadata struct {
	SessionName string
	Turret      string
	// Duration is the simulated session length in seconds.
	Duration float64
	Tag      string
}

// Client talks to the range server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New returns a client for baseURL authenticating uploads with apiKey.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck returns nil when the server answers 200.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + healthPath)
	if err != nil {
		return fmt.Errorf("healthcheck: %w", err)
	}
	defer resp.Body.Close()
	return expectOK("healthcheck", resp)
}

// Upload streams the file at path and its metadata as a multipart form.
func (c *Client) Upload(path string, meta UploadMetadata) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	name := filepath.Base(path)
	fields := [][2]string{
		{"secret", c.apiKey},
		{"filename", name},
		{"sessionName", meta.SessionName},
		{"turret", meta.Turret},
		{"sessionDuration", strconv.FormatFloat(meta.Duration, 'f', 6, 64)},
		{"tag", meta.Tag},
	}

	body, form := io.Pipe()
	mw := multipart.NewWriter(form)
	go func() {
		form.CloseWithError(writeForm(mw, fields, name, file))
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+uploadPath, body)
	if err != nil {
		body.Close()
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	return expectOK("upload", resp)
}

// writeForm writes the fields then the file part and terminates the form.
func writeForm(mw *multipart.Writer, fields [][2]string, name string, src io.Reader) error {
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	return mw.Close()
}

func expectOK(op string, resp *http.Response) error {
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", op, resp.StatusCode)
	}
	return nil
}
