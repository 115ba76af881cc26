package files

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/podkeep/podkeep/internal/config"
	"github.com/podkeep/podkeep/internal/entity"
	"github.com/podkeep/podkeep/internal/util"
	"github.com/spf13/afero"
)

const downloadSubdir = "downloads"

// fileStore owns the download directory lifecycle and answers existence and
// size queries for the rest of the system.
type fileStore struct {
	fs  afero.Fs
	cfg *config.FileStoreConfig
	log *slog.Logger
}

func NewFileStore(cfg *config.FileStoreConfig, log *slog.Logger) *fileStore {
	return NewFileStoreWithFS(afero.NewOsFs(), cfg, log)
}

func NewFileStoreWithFS(fs afero.Fs, cfg *config.FileStoreConfig, log *slog.Logger) *fileStore {
	return &fileStore{
		fs:  fs,
		cfg: cfg,
		log: log.With(slog.String("item", "FileStore")),
	}
}

// DownloadDir returns the fixed downloads subdirectory under the app-private
// data root.
func (s *fileStore) DownloadDir() string {
	return filepath.Join(s.cfg.DataDir, downloadSubdir)
}

// EnsureDirectory creates the download directory if absent. Creation is
// idempotent, so it is safe to call before every transfer.
func (s *fileStore) EnsureDirectory() error {
	if err := s.fs.MkdirAll(s.DownloadDir(), 0o755); err != nil {
		return fmt.Errorf("cannot create download directory: %w", err)
	}

	return nil
}

func (s *fileStore) FilePath(filename string) string {
	return filepath.Join(s.DownloadDir(), filename)
}

func (s *fileStore) Exists(path string) bool {
	_, err := s.fs.Stat(path)
	if err == nil {
		return true
	}
	if os.IsNotExist(err) {
		return false
	}

	s.log.Error("Cannot stat file", slog.String("path", path), slog.Any("error", err))

	return false
}

// Remove deletes a file; a missing file is not an error.
func (s *fileStore) Remove(path string) error {
	if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot remove file %s: %w", path, err)
	}

	return nil
}

func (s *fileStore) SizeBytes(path string) (int64, error) {
	stat, err := s.fs.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("cannot stat file %s: %w", path, err)
	}

	return stat.Size(), nil
}

// Scan enumerates audio files in the download directory and synthesizes
// ledger-shaped records from their names, sizes and modification times,
// newest first. UserID and ID are left empty; the caller fills them in. This
// is the offline fallback view of "what's downloaded".
func (s *fileStore) Scan() ([]*entity.DownloadedEpisode, error) {
	entries, err := afero.ReadDir(s.fs, s.DownloadDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("cannot read download directory: %w", err)
	}

	var records []*entity.DownloadedEpisode
	for _, entry := range entries {
		if entry.IsDir() || !util.HasAudioExtension(entry.Name()) {
			continue
		}

		records = append(records, &entity.DownloadedEpisode{
			EpisodeID:     util.StripAudioExtension(entry.Name()),
			LocalPath:     s.FilePath(entry.Name()),
			FileSizeBytes: entry.Size(),
			DownloadedAt:  entry.ModTime(),
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].DownloadedAt.After(records[j].DownloadedAt)
	})

	return records, nil
}
