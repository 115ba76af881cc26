package entity

import "time"

// DownloadedEpisode is a ledger record: one completed download of an episode
// by a user. A record is only valid while LocalPath still resolves to an
// existing file; read paths that find the file gone delete the record.
type DownloadedEpisode struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	EpisodeID     string    `json:"episode_id"`
	LocalPath     string    `json:"local_path"`
	FileSizeBytes int64     `json:"file_size"`
	DownloadedAt  time.Time `json:"downloaded_at"`
}

// LibraryStatus partitions a user's library.
type LibraryStatus string

const (
	StatusQueue      LibraryStatus = "queue"
	StatusLiked      LibraryStatus = "liked"
	StatusHistory    LibraryStatus = "history"
	StatusDownloaded LibraryStatus = "downloaded"
)

// LibraryItem links a user to an episode with a status.
type LibraryItem struct {
	UserID    string        `json:"user_id"`
	EpisodeID string        `json:"episode_id"`
	Status    LibraryStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}
