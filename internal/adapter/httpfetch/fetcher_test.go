package httpfetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T) (*fetcher, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	return NewFetcherWithClient(&http.Client{}, fs, log), fs
}

func TestStartDownloadsFile(t *testing.T) {
	body := strings.Repeat("a", 100_000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	f, fs := newTestFetcher(t)

	var reports []Progress
	job := f.Start(context.Background(), srv.URL, "/out.mp3", func(p Progress) {
		reports = append(reports, p)
	})

	status, err := job.Wait()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)

	data, err := afero.ReadFile(fs, "/out.mp3")
	require.NoError(t, err)
	require.Equal(t, body, string(data))

	require.NotEmpty(t, reports)
	last := reports[len(reports)-1]
	require.Equal(t, int64(len(body)), last.BytesWritten)
	for i := 1; i < len(reports); i++ {
		require.Greater(t, reports[i].BytesWritten, reports[i-1].BytesWritten)
	}
}

func TestStartNon200WritesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f, fs := newTestFetcher(t)

	job := f.Start(context.Background(), srv.URL, "/out.mp3", nil)
	status, err := job.Wait()
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, status)

	exists, err := afero.Exists(fs, "/out.mp3")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestStop(t *testing.T) {
	firstChunk := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("a", 1024))
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t)

	var signalled bool
	job := f.Start(context.Background(), srv.URL, "/out.mp3", func(p Progress) {
		if !signalled {
			signalled = true
			close(firstChunk)
		}
	})

	<-firstChunk
	job.Stop()

	_, err := job.Wait()
	require.Error(t, err)
}
