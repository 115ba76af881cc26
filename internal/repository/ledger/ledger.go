package ledger

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
	// KeyDownloads is the per-user downloads table. HASH. dl:{user_id}
	// episode_id -> JSON record.
	KeyDownloads = "dl"

	KeySeparator = ":"
)

// FileChecker answers whether a ledger record still points at a real file.
type FileChecker interface {
	Exists(path string) bool
}

// ledgerRepository is the remote source of truth for which episodes a user
// has downloaded. Every read verifies the referenced file against the local
// file store and deletes stale rows as a side effect, so records that survive
// a read are known valid.
type ledgerRepository struct {
	cl    *redis.Client
	files FileChecker
	log   *slog.Logger
}

func NewLedgerRepository(cl *redis.Client, files FileChecker, log *slog.Logger) *ledgerRepository {
	return &ledgerRepository{
		cl:    cl,
		files: files,
		log:   log.With(slog.String("item", "LedgerRepository")),
	}
}

// Get fetches one record. A missing row, or a row whose file is gone from
// disk, yields (nil, nil); the stale row is deleted on the way out.
func (r *ledgerRepository) Get(ctx context.Context, userID, episodeID string) (*entity.DownloadedEpisode, error) {
	val, err := r.cl.HGet(ctx, getKey(KeyDownloads, userID), episodeID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("cannot get download record %s: %w", episodeID, err)
	}

	rec, err := unmarshalRecord(val)
	if err != nil {
		return nil, fmt.Errorf("cannot decode download record %s: %w", episodeID, err)
	}

	if !r.files.Exists(rec.LocalPath) {
		r.healStale(ctx, userID, rec)

		return nil, nil
	}

	return rec, nil
}

// ListAll returns all valid records for a user, newest first. Stale rows are
// deleted and dropped from the result.
func (r *ledgerRepository) ListAll(ctx context.Context, userID string) ([]*entity.DownloadedEpisode, error) {
	rows, err := r.cl.HGetAll(ctx, getKey(KeyDownloads, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot list download records: %w", err)
	}

	records := make([]*entity.DownloadedEpisode, 0, len(rows))
	for episodeID, val := range rows {
		rec, err := unmarshalRecord(val)
		if err != nil {
			r.log.Error("Cannot decode download record", slog.String("episode_id", episodeID), slog.Any("error", err))

			continue
		}

		if !r.files.Exists(rec.LocalPath) {
			r.healStale(ctx, userID, rec)

			continue
		}

		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].DownloadedAt.After(records[j].DownloadedAt)
	})

	return records, nil
}

// Upsert inserts or replaces the record for (userID, episodeID).
func (r *ledgerRepository) Upsert(ctx context.Context, userID, episodeID, localPath string, fileSizeBytes int64) error {
	rec := &entity.DownloadedEpisode{
		ID:            episodeID,
		UserID:        userID,
		EpisodeID:     episodeID,
		LocalPath:     localPath,
		FileSizeBytes: fileSizeBytes,
		DownloadedAt:  time.Now().UTC(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cannot encode download record %s: %w", episodeID, err)
	}

	if err := r.cl.HSet(ctx, getKey(KeyDownloads, userID), episodeID, data).Err(); err != nil {
		return fmt.Errorf("cannot save download record %s: %w", episodeID, err)
	}

	return nil
}

func (r *ledgerRepository) Delete(ctx context.Context, userID, episodeID string) error {
	if err := r.cl.HDel(ctx, getKey(KeyDownloads, userID), episodeID).Err(); err != nil {
		return fmt.Errorf("cannot delete download record %s: %w", episodeID, err)
	}

	return nil
}

// DeleteAll removes every record for a user.
func (r *ledgerRepository) DeleteAll(ctx context.Context, userID string) error {
	if err := r.cl.Del(ctx, getKey(KeyDownloads, userID)).Err(); err != nil {
		return fmt.Errorf("cannot delete download records: %w", err)
	}

	return nil
}

// TotalSizeBytes sums the recorded file sizes for a user. Stale rows still
// count here; the next Get or ListAll heals them.
func (r *ledgerRepository) TotalSizeBytes(ctx context.Context, userID string) (int64, error) {
	rows, err := r.cl.HGetAll(ctx, getKey(KeyDownloads, userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("cannot read download records: %w", err)
	}

	var total int64
	for episodeID, val := range rows {
		rec, err := unmarshalRecord(val)
		if err != nil {
			r.log.Error("Cannot decode download record", slog.String("episode_id", episodeID), slog.Any("error", err))

			continue
		}

		total += rec.FileSizeBytes
	}

	return total, nil
}

// healStale removes a record whose file no longer exists. Cleanup only, so
// failures are logged and swallowed.
func (r *ledgerRepository) healStale(ctx context.Context, userID string, rec *entity.DownloadedEpisode) {
	r.log.Info("Removing stale download record",
		slog.String("episode_id", rec.EpisodeID), slog.String("path", rec.LocalPath))

	if err := r.cl.HDel(ctx, getKey(KeyDownloads, userID), rec.EpisodeID).Err(); err != nil {
		r.log.Error("Cannot remove stale download record",
			slog.String("episode_id", rec.EpisodeID), slog.Any("error", err))
	}
}

func unmarshalRecord(val string) (*entity.DownloadedEpisode, error) {
	var rec entity.DownloadedEpisode
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, err
	}

	return &rec, nil
}

func getKey(keys ...string) string {
	return strings.Join(keys, KeySeparator)
}
