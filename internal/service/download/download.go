package download

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/dustin/go-humanize"
	"github.com/podkeep/podkeep/internal/common"
	"github.com/podkeep/podkeep/internal/config"
	"github.com/podkeep/podkeep/internal/entity"
	"github.com/podkeep/podkeep/internal/util"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName = "download"

	clearWorkers = 4
)

// Progress is reported to the caller per transferred chunk. Progress is in
// [0, 1] and stays 0 when the server does not announce a content length.
type Progress struct {
	BytesWritten  int64
	ContentLength int64
	Progress      float64
}

type Ledger interface {
	Get(ctx context.Context, userID, episodeID string) (*entity.DownloadedEpisode, error)
	ListAll(ctx context.Context, userID string) ([]*entity.DownloadedEpisode, error)
	Upsert(ctx context.Context, userID, episodeID, localPath string, fileSizeBytes int64) error
	Delete(ctx context.Context, userID, episodeID string) error
	DeleteAll(ctx context.Context, userID string) error
	TotalSizeBytes(ctx context.Context, userID string) (int64, error)
}

type FileStore interface {
	EnsureDirectory() error
	FilePath(filename string) string
	Exists(path string) bool
	Remove(path string) error
	SizeBytes(path string) (int64, error)
	Scan() ([]*entity.DownloadedEpisode, error)
}

// TransferJob is a handle on one running byte transfer.
type TransferJob interface {
	Wait() (int, error)
	Stop()
}

type Fetcher interface {
	Start(ctx context.Context, fromURL, toFile string, onChunk func(bytesWritten, contentLength int64)) TransferJob
}

// downloadService drives a download end to end: validate, dedupe, budget,
// transfer, persist, and reconcile ledger state against the file store on
// reads.
type downloadService struct {
	cfg      *config.DownloadConfig
	registry *Registry
	ledger   Ledger
	store    FileStore
	fetcher  Fetcher
	log      *slog.Logger
}

func NewDownloadService(cfg *config.DownloadConfig, registry *Registry, ledger Ledger, store FileStore, fetcher Fetcher, log *slog.Logger) *downloadService {
	return &downloadService{
		cfg:      cfg,
		registry: registry,
		ledger:   ledger,
		store:    store,
		fetcher:  fetcher,
		log:      log.With(slog.String("service", serviceName)),
	}
}

// DownloadAudio transfers an episode's audio to local storage and records it
// in the ledger, returning the local path. It is idempotent: a valid existing
// record short-circuits without a second transfer. At most one transfer per
// episode runs in this process; duplicates fail with ErrAlreadyInProgress.
func (s *downloadService) DownloadAudio(ctx context.Context, userID, episodeID, audioURL, title string, onProgress func(Progress)) (string, error) {
	if err := validateIdentifier("userId", userID); err != nil {
		return "", err
	}
	if err := validateIdentifier("episodeId", episodeID); err != nil {
		return "", err
	}
	if audioURL == "" {
		return "", fmt.Errorf("%w: audioUrl must not be empty", common.ErrInvalidArgument)
	}

	if s.registry.Has(episodeID) {
		return "", common.ErrAlreadyInProgress
	}

	rec, err := s.ledger.Get(ctx, userID, episodeID)
	if err != nil {
		// Read path: treat an unreachable ledger as "not downloaded" and let
		// the transfer itself surface connectivity problems.
		s.log.Warn("Cannot check existing download", slog.String("episode_id", episodeID), slog.Any("error", err))
	} else if rec != nil {
		s.log.Info("Episode already downloaded", slog.String("episode_id", episodeID), slog.String("path", rec.LocalPath))

		return rec.LocalPath, nil
	}

	if err := s.checkBudget(ctx, userID); err != nil {
		return "", err
	}

	if err := s.store.EnsureDirectory(); err != nil {
		return "", fmt.Errorf("cannot prepare download directory: %w", err)
	}

	path := s.store.FilePath(util.SafeFilename(episodeID, audioURL))

	entry, err := s.registry.Add(episodeID, path)
	if err != nil {
		return "", err
	}
	defer s.registry.Remove(episodeID, entry.id)

	s.log.Info("Starting download",
		slog.String("transfer_id", entry.id), slog.String("episode_id", episodeID),
		slog.String("title", title), slog.String("path", path))

	job := s.fetcher.Start(ctx, audioURL, path, func(bytesWritten, contentLength int64) {
		entry.bytes.Store(bytesWritten)

		if onProgress != nil {
			p := Progress{BytesWritten: bytesWritten, ContentLength: contentLength}
			if contentLength > 0 {
				p.Progress = float64(bytesWritten) / float64(contentLength)
			}
			onProgress(p)
		}
	})
	entry.setJob(job)

	status, err := job.Wait()
	if err != nil {
		// Wait only returns after the transfer goroutine has released the
		// file handle, so the partial file can be removed without racing a
		// late write into a retry's file.
		if rmErr := s.store.Remove(path); rmErr != nil {
			s.log.Error("Cannot remove partial file", slog.String("path", path), slog.Any("error", rmErr))
		}

		return "", fmt.Errorf("transfer failed: %w", err)
	}
	if status != http.StatusOK {
		return "", &common.TransferError{StatusCode: status}
	}

	// A missing or unreadable file after a reported-successful transfer is a
	// hard failure, not housekeeping.
	size, err := s.store.SizeBytes(path)
	if err != nil {
		return "", fmt.Errorf("cannot stat downloaded file: %w", err)
	}

	if err := s.ledger.Upsert(ctx, userID, episodeID, path, size); err != nil {
		return "", fmt.Errorf("cannot save download record: %w", err)
	}

	s.log.Info("Download complete",
		slog.String("episode_id", episodeID), slog.String("size", humanize.Bytes(uint64(size))))

	return path, nil
}

// CancelDownload stops an in-flight transfer and unblocks a retry. The stop
// is cooperative: the transfer winds down on its own and the unwinding
// DownloadAudio call removes the partial file once the handle is released.
// Unknown episode ids are a no-op.
func (s *downloadService) CancelDownload(episodeID string) {
	entry := s.registry.Get(episodeID)
	if entry == nil {
		return
	}

	entry.stop()
	s.registry.Remove(episodeID, entry.id)

	s.log.Info("Download cancelled", slog.String("episode_id", episodeID))
}

// GetDownload returns the valid ledger record for an episode, or nil when it
// is not downloaded.
func (s *downloadService) GetDownload(ctx context.Context, userID, episodeID string) (*entity.DownloadedEpisode, error) {
	rec, err := s.ledger.Get(ctx, userID, episodeID)
	if err != nil {
		return nil, fmt.Errorf("cannot get download record %s: %w", episodeID, err)
	}

	return rec, nil
}

// ListDownloads enumerates the user's downloads, newest first. When the
// ledger is unreachable it degrades to a directory scan so downloads stay
// visible offline; the scan cannot know the owning user, so the caller's id
// is substituted.
func (s *downloadService) ListDownloads(ctx context.Context, userID string) ([]*entity.DownloadedEpisode, error) {
	records, err := s.ledger.ListAll(ctx, userID)
	if err == nil {
		return records, nil
	}

	s.log.Warn("Ledger unreachable, listing from download directory", slog.Any("error", err))

	records, scanErr := s.store.Scan()
	if scanErr != nil {
		return nil, fmt.Errorf("cannot scan download directory: %w", scanErr)
	}

	for _, rec := range records {
		rec.ID = rec.EpisodeID
		rec.UserID = userID
	}

	return records, nil
}

// DeleteDownload removes the episode's file (best effort) and its ledger row.
func (s *downloadService) DeleteDownload(ctx context.Context, userID, episodeID string) error {
	rec, err := s.ledger.Get(ctx, userID, episodeID)
	if err != nil {
		return fmt.Errorf("cannot get download record %s: %w", episodeID, err)
	}
	if rec == nil {
		return common.ErrNotDownloaded
	}

	if err := s.store.Remove(rec.LocalPath); err != nil {
		s.log.Error("Cannot remove file", slog.String("path", rec.LocalPath), slog.Any("error", err))
	}

	if err := s.ledger.Delete(ctx, userID, episodeID); err != nil {
		return fmt.Errorf("cannot delete download record %s: %w", episodeID, err)
	}

	return nil
}

// ClearAllDownloads deletes every downloaded file (best effort, in parallel)
// and then drops all of the user's ledger rows.
func (s *downloadService) ClearAllDownloads(ctx context.Context, userID string) error {
	records, err := s.ledger.ListAll(ctx, userID)
	if err != nil {
		return fmt.Errorf("cannot list download records: %w", err)
	}

	g := new(errgroup.Group)
	g.SetLimit(clearWorkers)
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			if err := s.store.Remove(rec.LocalPath); err != nil {
				s.log.Error("Cannot remove file", slog.String("path", rec.LocalPath), slog.Any("error", err))
			}

			return nil
		})
	}
	_ = g.Wait()

	if err := s.ledger.DeleteAll(ctx, userID); err != nil {
		return fmt.Errorf("cannot delete download records: %w", err)
	}

	return nil
}

// CacheUsage reports recorded plus in-flight bytes. An unreachable ledger
// counts as zero so the report stays available offline.
func (s *downloadService) CacheUsage(ctx context.Context, userID string) int64 {
	total, err := s.ledger.TotalSizeBytes(ctx, userID)
	if err != nil {
		s.log.Warn("Cannot read cache size, assuming zero", slog.Any("error", err))
		total = 0
	}

	return total + s.registry.TotalActiveBytes()
}

// checkBudget rejects a new transfer once recorded plus in-flight bytes reach
// the cap. The size read fails open: offline downloads are already blocked by
// network availability, so an unreachable ledger must not block anything
// else.
func (s *downloadService) checkBudget(ctx context.Context, userID string) error {
	if s.CacheUsage(ctx, userID) >= s.cfg.CacheLimitBytes() {
		return common.ErrCacheLimitExceeded
	}

	return nil
}

// validateIdentifier guards against a caller-ordering bug: a URL passed where
// an identifier was expected would corrupt ledger keys.
func validateIdentifier(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s must not be empty", common.ErrInvalidArgument, name)
	}

	if u, err := url.Parse(value); err == nil && u.Scheme != "" && u.Host != "" {
		return fmt.Errorf("%w: %s looks like a URL", common.ErrInvalidArgument, name)
	}

	return nil
}
