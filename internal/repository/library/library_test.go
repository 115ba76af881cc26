package library

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/podkeep/podkeep/internal/entity"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *libraryRepository {
	t.Helper()

	mr := miniredis.RunT(t)
	cl := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cl.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	return NewLibraryRepository(cl, log)
}

func TestSaveGetEpisode(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	episode := &entity.Episode{
		ID:       "ep42.mp3",
		Title:    "Episode 42",
		AudioURL: "https://host/path/ep42.mp3",
		PubDate:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.SaveEpisode(ctx, episode))

	got, err := repo.GetEpisode(ctx, "ep42.mp3")
	require.NoError(t, err)
	require.Equal(t, episode, got)

	got, err = repo.GetEpisode(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestLibraryMembership(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.AddToLibrary(ctx, "u1", "ep1", entity.StatusDownloaded))
	require.NoError(t, repo.AddToLibrary(ctx, "u1", "ep2", entity.StatusDownloaded))
	require.NoError(t, repo.AddToLibrary(ctx, "u1", "ep1", entity.StatusLiked))

	downloaded, err := repo.ListLibrary(ctx, "u1", entity.StatusDownloaded)
	require.NoError(t, err)
	require.Len(t, downloaded, 2)

	liked, err := repo.ListLibrary(ctx, "u1", entity.StatusLiked)
	require.NoError(t, err)
	require.Len(t, liked, 1)
	require.Equal(t, "ep1", liked[0].EpisodeID)

	require.NoError(t, repo.RemoveFromLibrary(ctx, "u1", "ep1", entity.StatusDownloaded))

	downloaded, err = repo.ListLibrary(ctx, "u1", entity.StatusDownloaded)
	require.NoError(t, err)
	require.Len(t, downloaded, 1)
	require.Equal(t, "ep2", downloaded[0].EpisodeID)
}

func TestAddToLibraryKeepsOriginalTimestamp(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.AddToLibrary(ctx, "u1", "ep1", entity.StatusLiked))

	before, err := repo.ListLibrary(ctx, "u1", entity.StatusLiked)
	require.NoError(t, err)
	require.Len(t, before, 1)

	require.NoError(t, repo.AddToLibrary(ctx, "u1", "ep1", entity.StatusLiked))

	after, err := repo.ListLibrary(ctx, "u1", entity.StatusLiked)
	require.NoError(t, err)
	require.Len(t, after, 1)
	require.Equal(t, before[0].CreatedAt, after[0].CreatedAt)
}

func TestLibraryStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	count, err := repo.LibraryStats(ctx, "u1")
	require.NoError(t, err)
	require.Zero(t, count)

	require.NoError(t, repo.AddToLibrary(ctx, "u1", "ep1", entity.StatusLiked))
	require.NoError(t, repo.AddToLibrary(ctx, "u1", "ep2", entity.StatusLiked))

	count, err = repo.LibraryStats(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}
