package util

import (
	"fmt"
	"strings"
	"time"
)

const defaultExtension = ".mp3"

// audioExtensions are the file extensions the download directory scan and the
// filename builder recognize as podcast audio.
var audioExtensions = []string{".mp3", ".m4a", ".aac", ".ogg", ".opus", ".wav", ".flac"}

var filenameReplacer = strings.NewReplacer(
	"\\", "_",
	"/", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "_",
)

// EpisodeIDFromURL derives a stable, filesystem-safe episode identifier from
// an audio URL: the last path segment with any query string stripped. An empty
// URL (or one whose last segment is empty) yields a synthesized "ep_<now>"
// identifier so the result is always non-empty.
func EpisodeIDFromURL(rawURL string) string {
	s := rawURL
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}

	if s == "" {
		return fmt.Sprintf("ep_%d", time.Now().UnixMilli())
	}

	return s
}

// SafeFilename builds the on-disk filename for an episode: the identifier
// with exactly one audio extension, inferred from the audio URL and defaulting
// to ".mp3". An identifier that already carries an audio extension is stripped
// first, so passing an extensioned id back in never produces "x.mp3.mp3".
func SafeFilename(episodeID, audioURL string) string {
	name := episodeID
	for _, ext := range audioExtensions {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			name = name[:len(name)-len(ext)]

			break
		}
	}

	name = filenameReplacer.Replace(name)
	if name == "" {
		name = "episode"
	}

	return name + extensionFromURL(audioURL)
}

// HasAudioExtension reports whether a filename ends in a recognized audio
// extension.
func HasAudioExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range audioExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}

	return false
}

// StripAudioExtension removes a single recognized audio extension, if present.
func StripAudioExtension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range audioExtensions {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}

	return name
}

func extensionFromURL(audioURL string) string {
	if audioURL == "" {
		return defaultExtension
	}

	tail := audioURL
	if i := strings.LastIndex(tail, "/"); i >= 0 {
		tail = tail[i+1:]
	}
	if i := strings.Index(tail, "?"); i >= 0 {
		tail = tail[:i]
	}

	i := strings.LastIndex(tail, ".")
	if i < 0 || i == len(tail)-1 {
		return defaultExtension
	}

	ext := strings.ToLower(tail[i:])
	for _, known := range audioExtensions {
		if ext == known {
			return ext
		}
	}

	return defaultExtension
}
