package entity

import "time"

// Episode is the normalized episode shape produced by the feed adapter.
// All other packages consume this type; optional feed fields are already
// resolved at the boundary.
type Episode struct {
	ID          string    `json:"id"` // Stable identifier, derived from the audio URL when the feed has no GUID
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AudioURL    string    `json:"audio_url"`
	ImageURL    string    `json:"image_url"`
	PubDate     time.Time `json:"pub_date"`
	Duration    string    `json:"duration"`
}

// EpisodeMetadata holds the denormalized display fields cached locally so the
// UI can render a downloaded episode while the remote episode record is
// unreachable. No relational integrity with the ledger.
type EpisodeMetadata struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AudioURL    string    `json:"audio_url"`
	ImageURL    string    `json:"image_url"`
	PubDate     time.Time `json:"pub_date"`
}

// Metadata extracts the cacheable display fields of an episode.
func (e *Episode) Metadata() *EpisodeMetadata {
	return &EpisodeMetadata{
		Title:       e.Title,
		Description: e.Description,
		AudioURL:    e.AudioURL,
		ImageURL:    e.ImageURL,
		PubDate:     e.PubDate,
	}
}
