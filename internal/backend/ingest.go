package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const (
	UploadIngestStarted = "Upload successful! Ingestion started."
	UploadIngestFailed  = "Upload successful! Ingestion failed to start."
	UploadFailed        = "Error uploading file."
)

var ErrNotZip = errors.New("only .zip files are allowed")

// Upload sends a zip archive as multipart field "file". The file is streamed,
// not buffered, so no timeout beyond ctx applies.
func (c *Client) Upload(ctx context.Context, path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return ErrNotZip
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer f.Close()
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(UploadPath), pr)
	if err != nil {
		pr.CloseWithError(err)
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: "upload", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newHTTPError("upload", resp)
	}
	return nil
}

// TriggerIngest asks the backend to ingest the last uploaded archive.
func (c *Client) TriggerIngest(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(IngestPath), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: "ingest", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newHTTPError("ingest", resp)
	}
	return nil
}

// UploadAndIngest uploads the archive, then starts ingestion, and reports
// the outcome as a user-facing line.
func (c *Client) UploadAndIngest(ctx context.Context, path string) string {
	if err := c.Upload(ctx, path); err != nil {
		c.logger.Error("upload failed", zap.String("path", path), zap.Error(err))
		return UploadFailed
	}
	if err := c.TriggerIngest(ctx); err != nil {
		c.logger.Error("ingest trigger failed", zap.Error(err))
		return UploadIngestFailed
	}
	c.logger.Info("ingestion started", zap.String("path", path))
	return UploadIngestStarted
}
