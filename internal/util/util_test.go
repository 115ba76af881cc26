package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEpisodeIDFromURL(t *testing.T) {
	testCases := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "plain url",
			url:      "https://host/path/ep42.mp3",
			expected: "ep42.mp3",
		},
		{
			name:     "query string stripped",
			url:      "https://host/path/ep42.mp3?sig=1&x=2",
			expected: "ep42.mp3",
		},
		{
			name:     "no path",
			url:      "ep42",
			expected: "ep42",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, EpisodeIDFromURL(tc.url))
		})
	}
}

func TestEpisodeIDFromURLFallback(t *testing.T) {
	for _, url := range []string{"", "https://host/path/", "https://host/path/?x=1"} {
		id := EpisodeIDFromURL(url)
		require.NotEmpty(t, id)
		require.True(t, strings.HasPrefix(id, "ep_"), "got %q", id)
	}
}

func TestSafeFilename(t *testing.T) {
	testCases := []struct {
		name      string
		episodeID string
		audioURL  string
		expected  string
	}{
		{
			name:      "id already extensioned",
			episodeID: "abc123.mp3",
			audioURL:  "https://x/y/abc123.mp3?sig=1",
			expected:  "abc123.mp3",
		},
		{
			name:      "no url defaults to mp3",
			episodeID: "xyz",
			audioURL:  "",
			expected:  "xyz.mp3",
		},
		{
			name:      "extension inferred from url",
			episodeID: "show-12",
			audioURL:  "https://cdn.example.com/audio/show-12.m4a?token=a.b",
			expected:  "show-12.m4a",
		},
		{
			name:      "unknown extension falls back to mp3",
			episodeID: "show-13",
			audioURL:  "https://cdn.example.com/audio/show-13.exe",
			expected:  "show-13.mp3",
		},
		{
			name:      "unsafe characters replaced",
			episodeID: "a/b:c",
			audioURL:  "",
			expected:  "a_b_c.mp3",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, SafeFilename(tc.episodeID, tc.audioURL))
		})
	}
}

func TestHasAudioExtension(t *testing.T) {
	require.True(t, HasAudioExtension("ep42.mp3"))
	require.True(t, HasAudioExtension("EP42.M4A"))
	require.False(t, HasAudioExtension("notes.txt"))
	require.Equal(t, "ep42", StripAudioExtension("ep42.mp3"))
	require.Equal(t, "notes.txt", StripAudioExtension("notes.txt"))
}
