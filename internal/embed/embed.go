// Package embed turns pasted external stream links into embeddable player URLs.
package embed

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
)

var (
	youtubeID     = regexp.MustCompile(`(?:v=|youtu\.be/)([A-Za-z0-9_-]{6,})`)
	twitchChannel = regexp.MustCompile(`(?i)twitch\.tv/([A-Za-z0-9_]+)`)
)

const (
	youtubeEmbedURL  = "https://www.youtube.com/embed/%s"
	twitchPlayerURL  = "https://player.twitch.tv/?channel=%s&parent=%s&muted=true"
	twitchPlayerHost = "player.twitch.tv"
)

// Normalize derives the canonical embeddable URL for raw on platform.
// host is the hostname of the page embedding the player.
// Normalize is pure and idempotent; unrecognised input is returned trimmed.
func Normalize(raw, platform, host string) string {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(strings.TrimSpace(platform)) {
	case domain.PlatformYouTube:
		return youtube(raw)
	case domain.PlatformTwitch:
		return twitch(raw, host)
	default:
		return raw
	}
}

func youtube(raw string) string {
	if m := youtubeID.FindStringSubmatch(raw); m != nil {
		return fmt.Sprintf(youtubeEmbedURL, m[1])
	}
	return raw
}

func twitch(raw, host string) string {
	channel := raw
	if u, err := url.Parse(raw); err == nil && u.Host == twitchPlayerHost {
		if c := u.Query().Get("channel"); c != "" {
			channel = c
		}
	} else if m := twitchChannel.FindStringSubmatch(raw); m != nil {
		channel = m[1]
	}
	return fmt.Sprintf(twitchPlayerURL, channel, host)
}
