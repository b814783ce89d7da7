package domain

import (
	"net/url"
	"strings"
)

// NormalizeVideoURL validates a YouTube video URL and returns it in canonical
// watch form (https://www.youtube.com/watch?v=ID). Shorts are rejected.
func NormalizeVideoURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidSource
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", ErrInvalidSource
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	path := strings.Trim(u.EscapedPath(), "/")

	var id string
	switch host {
	case "youtube.com", "music.youtube.com":
		switch {
		case strings.HasPrefix(path, "shorts/"):
			return "", ErrUnsupportedSource
		case path == "watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(path, "embed/"), strings.HasPrefix(path, "live/"), strings.HasPrefix(path, "v/"):
			id = path[strings.Index(path, "/")+1:]
		}
	case "youtu.be":
		id = path
	default:
		return "", ErrInvalidSource
	}

	if !validVideoID(id) {
		return "", ErrInvalidSource
	}
	return "https://www.youtube.com/watch?v=" + id, nil
}

func validVideoID(id string) bool {
	if len(id) < 6 || len(id) > 20 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
