package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/podkeep/podkeep/internal/adapter/feed"
	"github.com/podkeep/podkeep/internal/adapter/httpfetch"
	"github.com/podkeep/podkeep/internal/config"
	"github.com/podkeep/podkeep/internal/entity"
	"github.com/podkeep/podkeep/internal/repository/ledger"
	"github.com/podkeep/podkeep/internal/repository/library"
	"github.com/podkeep/podkeep/internal/service/download"
	"github.com/podkeep/podkeep/internal/service/manager"
	"github.com/podkeep/podkeep/internal/storage/files"
	"github.com/podkeep/podkeep/internal/storage/metacache"
	"github.com/redis/go-redis/v9"
)

type DownloadService interface {
	ListDownloads(ctx context.Context, userID string) ([]*entity.DownloadedEpisode, error)
	DeleteDownload(ctx context.Context, userID, episodeID string) error
	ClearAllDownloads(ctx context.Context, userID string) error
	CacheUsage(ctx context.Context, userID string) int64
}

type ManagerService interface {
	DownloadEpisode(ctx context.Context, userID string, episode *entity.Episode, onProgress func(download.Progress)) (string, error)
	LibraryStats(ctx context.Context, userID string) (int64, error)
}

type FeedAdapter interface {
	Fetch(ctx context.Context, feedURL string) ([]*entity.Episode, error)
}

// App wires configuration, redis, storage and the services behind the CLI
// commands.
type App struct {
	cfgPath string
	cfg     *config.Config
	rdb     *redis.Client
	log     *slog.Logger

	downloads DownloadService
	manager   ManagerService
	feeds     FeedAdapter
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
	}
}

func (a *App) Init(ctx context.Context) error {
	a.cfg = config.MustLoad(a.cfgPath)

	lo := &slog.HandlerOptions{}
	switch a.cfg.LogLevel {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		return fmt.Errorf("unknown log level: %s", a.cfg.LogLevel)
	}
	a.log = slog.New(slog.NewTextHandler(os.Stderr, lo))

	opt, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("cannot parse redis url: %w", err)
	}
	a.rdb = redis.NewClient(opt)
	if _, err := a.rdb.Ping(ctx).Result(); err != nil {
		a.log.Warn("Redis is unreachable, starting in offline mode", slog.Any("error", err))
	}

	store := files.NewFileStore(&a.cfg.StorageConfig, a.log)
	meta := metacache.NewMetaCache(&a.cfg.StorageConfig, a.log)
	ledgerRepo := ledger.NewLedgerRepository(a.rdb, store, a.log)
	libraryRepo := library.NewLibraryRepository(a.rdb, a.log)
	fetcher := httpfetch.NewFetcher(a.cfg.DownloadConfig.Timeout(), a.log)

	downloadSrv := download.NewDownloadService(
		&a.cfg.DownloadConfig, download.NewRegistry(), ledgerRepo, store, fetchAdapter{fetcher}, a.log)

	a.downloads = downloadSrv
	a.manager = manager.NewManagerService(downloadSrv, libraryRepo, meta, a.log)
	a.feeds = feed.NewAdapter(a.log)

	return nil
}

func (a *App) Close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
}

// Feed prints the playable episodes of a feed, newest first as published.
func (a *App) Feed(ctx context.Context, feedURL string) error {
	episodes, err := a.feeds.Fetch(ctx, feedURL)
	if err != nil {
		return err
	}

	for i, ep := range episodes {
		fmt.Printf("%d. %s [%s] %s\n", i+1, ep.Title, ep.PubDate.Format("2006-01-02"), ep.ID)
	}

	return nil
}

// Get downloads a single episode from a direct audio URL.
func (a *App) Get(ctx context.Context, audioURL, title string) error {
	episode := &entity.Episode{
		Title:    title,
		AudioURL: audioURL,
	}

	return a.download(ctx, episode)
}

// Latest downloads the newest episode of a feed.
func (a *App) Latest(ctx context.Context, feedURL string) error {
	episodes, err := a.feeds.Fetch(ctx, feedURL)
	if err != nil {
		return err
	}

	return a.download(ctx, episodes[0])
}

func (a *App) download(ctx context.Context, episode *entity.Episode) error {
	path, err := a.manager.DownloadEpisode(ctx, a.cfg.UserID, episode, func(p download.Progress) {
		if p.ContentLength > 0 {
			fmt.Printf("\r%3.0f%% (%s / %s)", p.Progress*100,
				humanize.Bytes(uint64(p.BytesWritten)), humanize.Bytes(uint64(p.ContentLength)))
		} else {
			fmt.Printf("\r%s", humanize.Bytes(uint64(p.BytesWritten)))
		}
	})
	fmt.Println()
	if err != nil {
		return err
	}

	fmt.Printf("Saved to %s\n", path)

	return nil
}

// List prints the user's downloads and total cache usage.
func (a *App) List(ctx context.Context) error {
	records, err := a.downloads.ListDownloads(ctx, a.cfg.UserID)
	if err != nil {
		return err
	}

	for i, rec := range records {
		fmt.Printf("%d. %s  %s  %s\n", i+1, rec.EpisodeID,
			humanize.Bytes(uint64(rec.FileSizeBytes)), rec.DownloadedAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("Total: %s\n", humanize.Bytes(uint64(a.downloads.CacheUsage(ctx, a.cfg.UserID))))

	return nil
}

// Remove deletes one download.
func (a *App) Remove(ctx context.Context, episodeID string) error {
	return a.downloads.DeleteDownload(ctx, a.cfg.UserID, episodeID)
}

// Clear deletes all downloads.
func (a *App) Clear(ctx context.Context) error {
	return a.downloads.ClearAllDownloads(ctx, a.cfg.UserID)
}

// Stats prints library and cache counters.
func (a *App) Stats(ctx context.Context) error {
	liked, err := a.manager.LibraryStats(ctx, a.cfg.UserID)
	if err != nil {
		return err
	}

	fmt.Printf("Liked: %d\n", liked)
	fmt.Printf("Cache: %s\n", humanize.Bytes(uint64(a.downloads.CacheUsage(ctx, a.cfg.UserID))))

	return nil
}

// fetchAdapter bridges the HTTP fetcher to the orchestrator's transfer
// contract.
type fetchAdapter struct {
	f interface {
		Start(ctx context.Context, fromURL, toFile string, onChunk func(httpfetch.Progress)) *httpfetch.Job
	}
}

func (a fetchAdapter) Start(ctx context.Context, fromURL, toFile string, onChunk func(bytesWritten, contentLength int64)) download.TransferJob {
	return a.f.Start(ctx, fromURL, toFile, func(p httpfetch.Progress) {
		if onChunk != nil {
			onChunk(p.BytesWritten, p.ContentLength)
		}
	})
}
