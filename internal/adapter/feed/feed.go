package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/podkeep/podkeep/internal/common"
	"github.com/podkeep/podkeep/internal/entity"
	"github.com/podkeep/podkeep/internal/util"
)

// adapter is the single place where external feed data enters the system.
// Whatever shape the feed has, episodes leave here normalized: one audio URL,
// one image URL, one identifier derived from the audio URL.
type adapter struct {
	parser *gofeed.Parser
	log    *slog.Logger
}

func NewAdapter(log *slog.Logger) *adapter {
	return &adapter{
		parser: gofeed.NewParser(),
		log:    log.With(slog.String("item", "FeedAdapter")),
	}
}

// Fetch downloads and parses a feed, returning its playable episodes.
func (a *adapter) Fetch(ctx context.Context, feedURL string) ([]*entity.Episode, error) {
	parsed, err := a.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch feed %s: %w", feedURL, err)
	}

	return a.episodes(parsed)
}

// Parse reads a feed document from r; used for already-fetched content.
func (a *adapter) Parse(r io.Reader) ([]*entity.Episode, error) {
	parsed, err := a.parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("cannot parse feed: %w", err)
	}

	return a.episodes(parsed)
}

func (a *adapter) episodes(parsed *gofeed.Feed) ([]*entity.Episode, error) {
	feedImage := ""
	if parsed.Image != nil {
		feedImage = parsed.Image.URL
	}

	episodes := make([]*entity.Episode, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		audioURL := audioEnclosure(item)
		if audioURL == "" {
			a.log.Debug("Skip item without audio enclosure", slog.String("title", item.Title))

			continue
		}

		episodes = append(episodes, normalizeItem(item, audioURL, feedImage))
	}

	if len(episodes) == 0 {
		return nil, common.ErrNoEpisodesFound
	}

	return episodes, nil
}

func normalizeItem(item *gofeed.Item, audioURL, feedImage string) *entity.Episode {
	episode := &entity.Episode{
		ID:          util.EpisodeIDFromURL(audioURL),
		Title:       strings.TrimSpace(item.Title),
		Description: strings.TrimSpace(item.Description),
		AudioURL:    audioURL,
		ImageURL:    feedImage,
	}

	if item.Image != nil && item.Image.URL != "" {
		episode.ImageURL = item.Image.URL
	}
	if item.ITunesExt != nil {
		if episode.ImageURL == "" {
			episode.ImageURL = item.ITunesExt.Image
		}
		episode.Duration = item.ITunesExt.Duration
	}

	if item.PublishedParsed != nil {
		episode.PubDate = *item.PublishedParsed
	} else {
		episode.PubDate = time.Now().UTC()
	}

	return episode
}

func audioEnclosure(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(enc.Type, "audio/") || util.HasAudioExtension(util.EpisodeIDFromURL(enc.URL)) {
			return enc.URL
		}
	}

	return ""
}
