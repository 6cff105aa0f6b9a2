// Package youtube resolves YouTube links into canonical watch and embed URLs
// and looks up video metadata with yt-dlp.
//
// Go Pattern: Define interfaces where they're USED, not where they're
// implemented. Handlers depend on the small MetadataLookup interface, and
// tests swap in a fake without ever shelling out.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// ErrNotYouTube is returned when a link does not identify a YouTube video.
var ErrNotYouTube = errors.New("not a YouTube URL or video ID")

// Video is a parsed YouTube reference.
type Video struct {
	ID       string `json:"id"`
	WatchURL string `json:"watch_url"`
	EmbedURL string `json:"embed_url"`
}

var (
	videoIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
	urlPatterns  = []*regexp.Regexp{
		regexp.MustCompile(`(?:youtube\.com/watch\?(?:[^#]*&)?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/v/|youtube\.com/live/)([a-zA-Z0-9_-]{11})(?:[?&#/]|$)`),
		regexp.MustCompile(`(?:youtube\.com/shorts/)([a-zA-Z0-9_-]{11})(?:[?&#/]|$)`),
	}
)

// Parse extracts the video ID from the common YouTube URL shapes:
//   - https://www.youtube.com/watch?v=VIDEO_ID (any query order)
//   - https://youtu.be/VIDEO_ID
//   - https://www.youtube.com/embed/VIDEO_ID, /v/, /live/, /shorts/
//   - Just the video ID itself (11 characters)
func Parse(input string) (Video, error) {
	input = strings.TrimSpace(input)

	if videoIDRegex.MatchString(input) {
		return newVideo(input), nil
	}
	for _, pattern := range urlPatterns {
		if m := pattern.FindStringSubmatch(input); len(m) >= 2 {
			return newVideo(m[1]), nil
		}
	}
	return Video{}, fmt.Errorf("%w: %s", ErrNotYouTube, input)
}

func newVideo(id string) Video {
	return Video{
		ID:       id,
		WatchURL: "https://www.youtube.com/watch?v=" + id,
		EmbedURL: EmbedURL(id, 0),
	}
}

// EmbedURL returns the player URL, starting playback at startSeconds when
// it is positive.
func EmbedURL(id string, startSeconds int) string {
	u := "https://www.youtube.com/embed/" + id
	if startSeconds > 0 {
		u += fmt.Sprintf("?start=%d&autoplay=1", startSeconds)
	}
	return u
}

// Metadata is what yt-dlp reports about a video.
type Metadata struct {
	ID       string
	Title    string
	Channel  string
	Duration int // seconds
}

// MetadataLookup fetches video metadata.
type MetadataLookup interface {
	Lookup(ctx context.Context, watchURL string) (*Metadata, error)
}

// YtDlp implements MetadataLookup with the yt-dlp CLI.
type YtDlp struct {
	path    string
	timeout time.Duration
}

// NewYtDlp creates a lookup that runs the binary at path.
func NewYtDlp(path string) *YtDlp {
	return &YtDlp{path: path, timeout: 30 * time.Second}
}

// Available reports whether the yt-dlp binary can be found.
func (y *YtDlp) Available() bool {
	_, err := exec.LookPath(y.path)
	return err == nil
}

type ytDlpMetadata struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Channel  string  `json:"channel"`
	Duration float64 `json:"duration"`
}

// Lookup runs yt-dlp --dump-json without downloading anything.
func (y *YtDlp) Lookup(ctx context.Context, watchURL string) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	// exec.CommandContext kills the process if the context is cancelled.
	cmd := exec.CommandContext(ctx, y.path,
		"--dump-json",
		"--no-download",
		"--no-warnings",
		"--no-playlist",
		watchURL,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp metadata failed: %w", err)
	}

	meta, err := parseMetadata(output)
	if err != nil {
		return nil, err
	}
	log.Printf("🎬 Resolved video %s: %s", meta.ID, meta.Title)
	return meta, nil
}

func parseMetadata(output []byte) (*Metadata, error) {
	var raw ytDlpMetadata
	if err := json.Unmarshal(output, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}
	return &Metadata{
		ID:       raw.ID,
		Title:    strings.TrimSpace(raw.Title),
		Channel:  raw.Channel,
		Duration: int(raw.Duration),
	}, nil
}
