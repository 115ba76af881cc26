package httpfetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/afero"
)

const copyChunkSize = 32 * 1024

// Progress is a per-chunk transfer report. ContentLength is -1 when the
// server does not announce one.
type Progress struct {
	BytesWritten  int64
	ContentLength int64
}

// Job is a handle on one in-flight transfer. Wait blocks until the transfer
// finishes and returns the HTTP status code; Stop cancels it cooperatively.
type Job struct {
	cancel context.CancelFunc
	done   chan struct{}

	status int
	err    error
}

func (j *Job) Wait() (int, error) {
	<-j.done

	return j.status, j.err
}

func (j *Job) Stop() {
	j.cancel()
}

// fetcher streams HTTP resources to files, reporting progress per chunk.
type fetcher struct {
	client *http.Client
	fs     afero.Fs
	log    *slog.Logger
}

func NewFetcher(timeout time.Duration, log *slog.Logger) *fetcher {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return NewFetcherWithClient(&http.Client{Timeout: timeout, Transport: tr}, afero.NewOsFs(), log)
}

func NewFetcherWithClient(client *http.Client, fs afero.Fs, log *slog.Logger) *fetcher {
	return &fetcher{
		client: client,
		fs:     fs,
		log:    log.With(slog.String("item", "Fetcher")),
	}
}

// Start begins streaming fromURL to toFile and returns immediately with a
// handle. A non-200 response writes no file. A cancelled or failed transfer
// may leave a partial file behind; the caller owns its cleanup.
func (f *fetcher) Start(ctx context.Context, fromURL, toFile string, onChunk func(Progress)) *Job {
	ctx, cancel := context.WithCancel(ctx)
	job := &Job{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(job.done)
		defer cancel()

		job.status, job.err = f.transfer(ctx, fromURL, toFile, onChunk)
	}()

	return job
}

func (f *fetcher) transfer(ctx context.Context, fromURL, toFile string, onChunk func(Progress)) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fromURL, nil)
	if err != nil {
		return 0, fmt.Errorf("cannot build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("cannot fetch %s: %w", fromURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}

	file, err := f.fs.Create(toFile)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("cannot create file %s: %w", toFile, err)
	}
	defer file.Close()

	var written int64
	buf := make([]byte, copyChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := file.Write(buf[:n]); err != nil {
				return resp.StatusCode, fmt.Errorf("cannot write file %s: %w", toFile, err)
			}

			written += int64(n)
			if onChunk != nil {
				onChunk(Progress{BytesWritten: written, ContentLength: resp.ContentLength})
			}
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return resp.StatusCode, fmt.Errorf("cannot read response body: %w", readErr)
		}
	}

	f.log.Debug("Transfer complete", slog.String("url", fromURL), slog.Int64("bytes", written))

	return resp.StatusCode, nil
}
