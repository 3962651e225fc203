package media

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hearthd/hearth/domain/repositories"
)

const mediaSourceScheme = "media-source://"

// Resolver resolves media-source ids to playable URLs. Two id families are
// supported:
//
//	media-source://media/<path>  entries registered in the local library
//	media-source://tts/<engine>?message=...  synthesized on demand
type Resolver struct {
	baseURL string
	tts     repositories.TextToSpeech
	logger  *zap.Logger

	mu      sync.RWMutex
	library map[string]repositories.ResolvedMedia
}

var _ repositories.MediaResolver = (*Resolver)(nil)

// NewResolver creates a media resolver. baseURL is the hub's externally
// reachable URL used to absolutize relative media paths. tts may be nil when
// no synthesis engine is configured.
func NewResolver(baseURL string, tts repositories.TextToSpeech, logger *zap.Logger) *Resolver {
	return &Resolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		tts:     tts,
		logger:  logger,
		library: make(map[string]repositories.ResolvedMedia),
	}
}

// Register adds a local library entry so media-source://media/<path> resolves
// to the given URL.
func (r *Resolver) Register(path string, url string, mimeType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.library[strings.Trim(path, "/")] = repositories.ResolvedMedia{URL: url, MimeType: mimeType}
}

// IsMediaSourceID reports whether id uses the media-source scheme
func (r *Resolver) IsMediaSourceID(id string) bool {
	return strings.HasPrefix(id, mediaSourceScheme)
}

// Resolve resolves a media-source id to a concrete URL
func (r *Resolver) Resolve(ctx context.Context, id string) (repositories.ResolvedMedia, error) {
	if !r.IsMediaSourceID(id) {
		return repositories.ResolvedMedia{}, fmt.Errorf("not a media-source id: %s", id)
	}

	rest := strings.TrimPrefix(id, mediaSourceScheme)
	domain, path, _ := strings.Cut(rest, "/")

	switch domain {
	case "media":
		return r.resolveLibrary(path)
	case "tts":
		return r.resolveTTS(ctx, path)
	default:
		return repositories.ResolvedMedia{}, fmt.Errorf("unknown media-source domain: %s", domain)
	}
}

func (r *Resolver) resolveLibrary(path string) (repositories.ResolvedMedia, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.library[strings.Trim(path, "/")]
	if !ok {
		return repositories.ResolvedMedia{}, fmt.Errorf("media not found: %s", path)
	}
	return entry, nil
}

// resolveTTS turns a deterministic tts media id back into a fresh synthesis
// stream and returns its URL.
func (r *Resolver) resolveTTS(ctx context.Context, path string) (repositories.ResolvedMedia, error) {
	if r.tts == nil {
		return repositories.ResolvedMedia{}, fmt.Errorf("no TTS engine configured")
	}

	engineHint, rawQuery, _ := strings.Cut(path, "?")
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return repositories.ResolvedMedia{}, fmt.Errorf("invalid tts media id: %w", err)
	}

	engine, ok := r.tts.ResolveEngine(engineHint)
	if !ok {
		return repositories.ResolvedMedia{}, fmt.Errorf("TTS engine %s not found", engineHint)
	}

	message := values.Get("message")
	if message == "" {
		return repositories.ResolvedMedia{}, fmt.Errorf("tts media id has no message")
	}
	language := values.Get("language")

	options := make(map[string]string)
	for key := range values {
		if key == "message" || key == "language" {
			continue
		}
		options[key] = values.Get(key)
	}

	stream, err := r.tts.CreateStream(ctx, engine, language, options)
	if err != nil {
		return repositories.ResolvedMedia{}, fmt.Errorf("failed to create TTS stream: %w", err)
	}
	stream.SetMessage(message)

	r.logger.Debug("Resolved tts media id",
		zap.String("engine", engine),
		zap.String("token", stream.Token()))
	return repositories.ResolvedMedia{URL: stream.URL(), MimeType: "audio/mpeg"}, nil
}

// ProcessPlayMediaURL makes relative media URLs absolute against the hub's
// base URL. Already absolute URLs pass through unchanged.
func (r *Resolver) ProcessPlayMediaURL(mediaURL string) string {
	parsed, err := url.Parse(mediaURL)
	if err == nil && parsed.Scheme != "" {
		return mediaURL
	}
	if !strings.HasPrefix(mediaURL, "/") {
		mediaURL = "/" + mediaURL
	}
	return r.baseURL + mediaURL
}
