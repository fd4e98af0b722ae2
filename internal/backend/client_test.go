package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rorical/ragchat/internal/models"
	"github.com/Rorical/ragchat/internal/stream"
)

func newTestClient(url string) *Client {
	return NewClient(ClientConfig{
		BaseURL:        url,
		RequestTimeout: 2 * time.Second,
		HeaderTimeout:  2 * time.Second,
	}, nil)
}

func readAll(t *testing.T, src stream.Source) string {
	t.Helper()
	a := stream.NewAssembler(src)
	for {
		_, err := a.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return a.Content()
		}
		require.NoError(t, err)
	}
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestClient_OpenStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ChatPath, r.URL.Path)

		var body struct {
			Message string `json:"message"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "what's in my data?", body.Message)

		w.Header().Set("Content-Type", "text/plain")
		flusher := w.(http.Flusher)
		raw := []byte("Voilà — ")
		w.Write(raw[:5]) // splits the "à"
		flusher.Flush()
		w.Write(raw[5:])
		flusher.Flush()
		w.Write([]byte("done"))
	}))
	defer srv.Close()

	src, err := newTestClient(srv.URL).OpenStream(context.Background(), "what's in my data?")
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, "Voilà — done", readAll(t, src))
}

func TestClient_OpenStream_NonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent not initialized", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).OpenStream(context.Background(), "hi")

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Contains(t, httpErr.Error(), "agent not initialized")
}

func TestClient_OpenStream_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).OpenStream(context.Background(), "hi")

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "chat-submit", transportErr.Op)
}

// =============================================================================
// STATUS TESTS
// =============================================================================

func TestClient_FetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, StatusPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ingestion_status":"running","agent_initialized":true,"ingestion_message":"Starting ingestion...","ingestion_progress":0.25}`))
	}))
	defer srv.Close()

	snap, err := newTestClient(srv.URL).FetchStatus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.IngestionRunning, snap.IngestionStatus)
	assert.True(t, snap.AgentInitialized)
	assert.Equal(t, "Starting ingestion...", snap.Message())
	require.NotNil(t, snap.IngestionProgress)
	assert.InDelta(t, 0.25, *snap.IngestionProgress, 1e-9)
}

func TestClient_FetchStatus_OptionalMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ingestion_status":"idle","agent_initialized":false}`))
	}))
	defer srv.Close()

	snap, err := newTestClient(srv.URL).FetchStatus(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap.IngestionMessage)
	assert.Equal(t, "", snap.Message())
}

func TestClient_FetchStatus_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(ClientConfig{BaseURL: srv.URL, RequestTimeout: 50 * time.Millisecond}, nil)
	_, err := c.FetchStatus(context.Background())

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_FetchStatus_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchStatus(context.Background())
	assert.ErrorContains(t, err, "decode status")
}

// =============================================================================
// UPLOAD TESTS
// =============================================================================

func writeZip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source-data.zip")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04fake"), 0o600))
	return path
}

func TestClient_UploadAndIngest(t *testing.T) {
	var ingested atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case UploadPath:
			f, hdr, err := r.FormFile("file")
			if !assert.NoError(t, err) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			defer f.Close()
			data, _ := io.ReadAll(f)
			assert.Equal(t, "source-data.zip", hdr.Filename)
			assert.Equal(t, "PK\x03\x04fake", string(data))
			w.Write([]byte(`{"message":"File uploaded successfully"}`))
		case IngestPath:
			ingested.Store(true)
			w.Write([]byte(`{"message":"Ingestion started"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	msg := newTestClient(srv.URL).UploadAndIngest(context.Background(), writeZip(t))

	assert.Equal(t, UploadIngestStarted, msg)
	assert.True(t, ingested.Load())
}

func TestClient_UploadAndIngest_IngestRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == IngestPath {
			http.Error(w, `{"detail":"Ingestion already in progress"}`, http.StatusBadRequest)
			return
		}
		io.Copy(io.Discard, r.Body)
	}))
	defer srv.Close()

	msg := newTestClient(srv.URL).UploadAndIngest(context.Background(), writeZip(t))
	assert.Equal(t, UploadIngestFailed, msg)
}

func TestClient_Upload_RejectsNonZip(t *testing.T) {
	err := newTestClient("http://127.0.0.1:0").Upload(context.Background(), "notes.txt")
	assert.ErrorIs(t, err, ErrNotZip)

	msg := newTestClient("http://127.0.0.1:0").UploadAndIngest(context.Background(), "notes.txt")
	assert.Equal(t, UploadFailed, msg)
}
