package repositories

import "context"

// ResolvedMedia is the outcome of resolving a media-source id
type ResolvedMedia struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
}

// MediaResolver turns abstract media ids into playable URLs
type MediaResolver interface {
	// IsMediaSourceID reports whether id uses the media-source scheme
	IsMediaSourceID(id string) bool

	// Resolve resolves a media-source id to a concrete URL
	Resolve(ctx context.Context, id string) (ResolvedMedia, error)

	// ProcessPlayMediaURL normalizes a playable URL, making relative URLs
	// absolute against the hub's base URL
	ProcessPlayMediaURL(url string) string
}
