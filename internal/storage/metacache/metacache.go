package metacache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/podkeep/podkeep/internal/config"
	"github.com/podkeep/podkeep/internal/entity"
	"github.com/spf13/afero"
)

const (
	metaSubdir = "meta"

	// keyPrefix namespaces cache entries so they cannot collide with other
	// locally cached data under the same root.
	keyPrefix = "episode_meta_"
)

// metaCache is a local key-value store of episode display metadata, keyed by
// episode id. It exists so the UI can render downloaded episodes while the
// remote episode record is unreachable; it is never a correctness-critical
// store, and callers treat writes as best-effort.
type metaCache struct {
	fs  afero.Fs
	cfg *config.FileStoreConfig
	log *slog.Logger
}

func NewMetaCache(cfg *config.FileStoreConfig, log *slog.Logger) *metaCache {
	return NewMetaCacheWithFS(afero.NewOsFs(), cfg, log)
}

func NewMetaCacheWithFS(fs afero.Fs, cfg *config.FileStoreConfig, log *slog.Logger) *metaCache {
	return &metaCache{
		fs:  fs,
		cfg: cfg,
		log: log.With(slog.String("item", "MetaCache")),
	}
}

func (c *metaCache) Set(episodeID string, meta *entity.EpisodeMetadata) error {
	if err := c.fs.MkdirAll(c.dir(), 0o755); err != nil {
		return fmt.Errorf("cannot create metadata directory: %w", err)
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("cannot marshal metadata for %s: %w", episodeID, err)
	}

	if err := afero.WriteFile(c.fs, c.keyPath(episodeID), data, 0o644); err != nil {
		return fmt.Errorf("cannot write metadata for %s: %w", episodeID, err)
	}

	return nil
}

// Get returns the cached metadata for an episode, or nil when no entry
// exists.
func (c *metaCache) Get(episodeID string) (*entity.EpisodeMetadata, error) {
	data, err := afero.ReadFile(c.fs, c.keyPath(episodeID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("cannot read metadata for %s: %w", episodeID, err)
	}

	var meta entity.EpisodeMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("cannot unmarshal metadata for %s: %w", episodeID, err)
	}

	return &meta, nil
}

func (c *metaCache) Delete(episodeID string) error {
	if err := c.fs.Remove(c.keyPath(episodeID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot delete metadata for %s: %w", episodeID, err)
	}

	return nil
}

func (c *metaCache) dir() string {
	return filepath.Join(c.cfg.DataDir, metaSubdir)
}

func (c *metaCache) keyPath(episodeID string) string {
	return filepath.Join(c.dir(), keyPrefix+episodeID+".json")
}
