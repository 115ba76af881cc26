package manager

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/podkeep/podkeep/internal/common"
	"github.com/podkeep/podkeep/internal/entity"
	"github.com/podkeep/podkeep/internal/service/download"
	"github.com/podkeep/podkeep/internal/util"
)

const serviceName = "manager"

type Downloader interface {
	DownloadAudio(ctx context.Context, userID, episodeID, audioURL, title string, onProgress func(download.Progress)) (string, error)
}

type Library interface {
	SaveEpisode(ctx context.Context, episode *entity.Episode) error
	AddToLibrary(ctx context.Context, userID, episodeID string, status entity.LibraryStatus) error
	RemoveFromLibrary(ctx context.Context, userID, episodeID string, status entity.LibraryStatus) error
	ListLibrary(ctx context.Context, userID string, status entity.LibraryStatus) ([]*entity.LibraryItem, error)
	LibraryStats(ctx context.Context, userID string) (int64, error)
}

type MetadataCache interface {
	Set(episodeID string, meta *entity.EpisodeMetadata) error
}

// managerService composes episode-level flows on top of the download
// orchestrator: catalog upsert, the transfer itself, the offline metadata
// write-through, and library bookkeeping. The orchestrator stays a
// bytes-and-ledger contract.
type managerService struct {
	downloader Downloader
	library    Library
	meta       MetadataCache
	log        *slog.Logger
}

func NewManagerService(downloader Downloader, library Library, meta MetadataCache, log *slog.Logger) *managerService {
	return &managerService{
		downloader: downloader,
		library:    library,
		meta:       meta,
		log:        log.With(slog.String("service", serviceName)),
	}
}

// DownloadEpisode downloads one episode for a user and records it everywhere
// it belongs: the remote catalog, the local metadata cache and the user's
// "downloaded" library partition. Catalog and metadata writes are best-effort;
// the library write is not, because a downloaded file missing from the library
// is a user-visible inconsistency.
func (m *managerService) DownloadEpisode(ctx context.Context, userID string, episode *entity.Episode, onProgress func(download.Progress)) (string, error) {
	if episode == nil || episode.AudioURL == "" {
		return "", fmt.Errorf("%w: episode has no audio URL", common.ErrInvalidArgument)
	}

	episodeID := episode.ID
	if episodeID == "" {
		episodeID = util.EpisodeIDFromURL(episode.AudioURL)
	}

	if err := m.library.SaveEpisode(ctx, episode); err != nil {
		m.log.Warn("Cannot save episode to catalog", slog.String("episode_id", episodeID), slog.Any("error", err))
	}

	path, err := m.downloader.DownloadAudio(ctx, userID, episodeID, episode.AudioURL, episode.Title, onProgress)
	if err != nil {
		return "", err
	}

	if err := m.meta.Set(episodeID, episode.Metadata()); err != nil {
		m.log.Warn("Cannot cache episode metadata", slog.String("episode_id", episodeID), slog.Any("error", err))
	}

	if err := m.library.AddToLibrary(ctx, userID, episodeID, entity.StatusDownloaded); err != nil {
		return "", fmt.Errorf("cannot mark episode %s as downloaded: %w", episodeID, err)
	}

	return path, nil
}

func (m *managerService) LikeEpisode(ctx context.Context, userID string, episode *entity.Episode) error {
	if episode == nil || episode.ID == "" {
		return fmt.Errorf("%w: episode has no id", common.ErrInvalidArgument)
	}

	if err := m.library.SaveEpisode(ctx, episode); err != nil {
		m.log.Warn("Cannot save episode to catalog", slog.String("episode_id", episode.ID), slog.Any("error", err))
	}

	if err := m.library.AddToLibrary(ctx, userID, episode.ID, entity.StatusLiked); err != nil {
		return fmt.Errorf("cannot like episode %s: %w", episode.ID, err)
	}

	return nil
}

func (m *managerService) UnlikeEpisode(ctx context.Context, userID, episodeID string) error {
	if err := m.library.RemoveFromLibrary(ctx, userID, episodeID, entity.StatusLiked); err != nil {
		return fmt.Errorf("cannot unlike episode %s: %w", episodeID, err)
	}

	return nil
}

func (m *managerService) ListLibrary(ctx context.Context, userID string, status entity.LibraryStatus) ([]*entity.LibraryItem, error) {
	items, err := m.library.ListLibrary(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("cannot list library: %w", err)
	}

	return items, nil
}

func (m *managerService) LibraryStats(ctx context.Context, userID string) (int64, error) {
	count, err := m.library.LibraryStats(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("cannot get library stats: %w", err)
	}

	return count, nil
}
