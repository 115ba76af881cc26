package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/podkeep/podkeep/internal/entity"
	"github.com/redis/go-redis/v9"
)

const (
	// KeyEpisodes is the shared episode catalog. HASH. ep episode_id -> JSON.
	KeyEpisodes = "ep"
	// KeyLibrary holds per-user, per-status membership. HASH.
	// lib:{user_id}:{status} episode_id -> JSON item.
	KeyLibrary = "lib"

	KeySeparator = ":"
)

// libraryRepository stores the remote episode catalog and each user's library
// partitions (queue, liked, history, downloaded).
type libraryRepository struct {
	cl  *redis.Client
	log *slog.Logger
}

func NewLibraryRepository(cl *redis.Client, log *slog.Logger) *libraryRepository {
	return &libraryRepository{
		cl:  cl,
		log: log.With(slog.String("item", "LibraryRepository")),
	}
}

// SaveEpisode inserts or replaces the catalog record for an episode.
func (r *libraryRepository) SaveEpisode(ctx context.Context, episode *entity.Episode) error {
	data, err := json.Marshal(episode)
	if err != nil {
		return fmt.Errorf("cannot encode episode %s: %w", episode.ID, err)
	}

	if err := r.cl.HSet(ctx, KeyEpisodes, episode.ID, data).Err(); err != nil {
		return fmt.Errorf("cannot save episode %s: %w", episode.ID, err)
	}

	return nil
}

// GetEpisode returns the catalog record, or nil when the episode is unknown.
func (r *libraryRepository) GetEpisode(ctx context.Context, episodeID string) (*entity.Episode, error) {
	val, err := r.cl.HGet(ctx, KeyEpisodes, episodeID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("cannot get episode %s: %w", episodeID, err)
	}

	var episode entity.Episode
	if err := json.Unmarshal([]byte(val), &episode); err != nil {
		return nil, fmt.Errorf("cannot decode episode %s: %w", episodeID, err)
	}

	return &episode, nil
}

// AddToLibrary puts an episode into one of the user's library partitions.
// Re-adding an existing member keeps the original timestamp.
func (r *libraryRepository) AddToLibrary(ctx context.Context, userID, episodeID string, status entity.LibraryStatus) error {
	item := &entity.LibraryItem{
		UserID:    userID,
		EpisodeID: episodeID,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("cannot encode library item %s: %w", episodeID, err)
	}

	if err := r.cl.HSetNX(ctx, getKey(KeyLibrary, userID, string(status)), episodeID, data).Err(); err != nil {
		return fmt.Errorf("cannot add episode %s to library: %w", episodeID, err)
	}

	return nil
}

func (r *libraryRepository) RemoveFromLibrary(ctx context.Context, userID, episodeID string, status entity.LibraryStatus) error {
	if err := r.cl.HDel(ctx, getKey(KeyLibrary, userID, string(status)), episodeID).Err(); err != nil {
		return fmt.Errorf("cannot remove episode %s from library: %w", episodeID, err)
	}

	return nil
}

// ListLibrary returns the user's items for one status, newest first.
func (r *libraryRepository) ListLibrary(ctx context.Context, userID string, status entity.LibraryStatus) ([]*entity.LibraryItem, error) {
	rows, err := r.cl.HGetAll(ctx, getKey(KeyLibrary, userID, string(status))).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot list library: %w", err)
	}

	items := make([]*entity.LibraryItem, 0, len(rows))
	for episodeID, val := range rows {
		var item entity.LibraryItem
		if err := json.Unmarshal([]byte(val), &item); err != nil {
			r.log.Error("Cannot decode library item", slog.String("episode_id", episodeID), slog.Any("error", err))

			continue
		}

		items = append(items, &item)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	return items, nil
}

// LibraryStats counts the user's liked episodes.
func (r *libraryRepository) LibraryStats(ctx context.Context, userID string) (int64, error) {
	count, err := r.cl.HLen(ctx, getKey(KeyLibrary, userID, string(entity.StatusLiked))).Result()
	if err != nil {
		return 0, fmt.Errorf("cannot count liked episodes: %w", err)
	}

	return count, nil
}

func getKey(keys ...string) string {
	return strings.Join(keys, KeySeparator)
}
