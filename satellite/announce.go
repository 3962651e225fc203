package satellite

import (
	"context"
	"fmt"

	"github.com/hearthd/hearth/domain/entities"
)

// resolveAnnouncement turns a (message, mediaID, preannounceMediaID) triple
// into a fully resolved, playable announcement. When mediaID is empty the
// message is synthesized with the selected pipeline's TTS engine; the
// synthesis stream yields a playable URL, a stable token, and a
// deterministic media-source id kept for audit.
func (s *Satellite) resolveAnnouncement(
	ctx context.Context,
	message string,
	mediaID string,
	preannounceMediaID string,
) (entities.Announcement, error) {
	var mediaIDSource entities.MediaSource
	var ttsToken, originalMediaID string

	if mediaID != "" {
		originalMediaID = mediaID
	} else {
		mediaIDSource = entities.MediaSourceTTS

		pipeline, err := s.currentPipeline()
		if err != nil {
			return entities.Announcement{}, err
		}

		engine, ok := s.tts.ResolveEngine(pipeline.TTSEngine)
		if !ok {
			return entities.Announcement{}, &ConfigurationError{
				Message: fmt.Sprintf("TTS engine %s not found", pipeline.TTSEngine),
			}
		}

		ttsOptions := make(map[string]string)
		if pipeline.TTSVoice != "" {
			ttsOptions["voice"] = pipeline.TTSVoice
		}
		for key, value := range s.opts.TTSOptions {
			ttsOptions[key] = value
		}

		stream, err := s.tts.CreateStream(ctx, engine, pipeline.TTSLanguage, ttsOptions)
		if err != nil {
			return entities.Announcement{}, fmt.Errorf("failed to create TTS stream: %w", err)
		}
		stream.SetMessage(message)

		ttsToken = stream.Token()
		mediaID = stream.URL()
		originalMediaID = s.tts.GenerateMediaID(message, engine, pipeline.TTSLanguage, ttsOptions)
	}

	if s.media.IsMediaSourceID(mediaID) {
		if mediaIDSource == "" {
			mediaIDSource = entities.MediaSourceMediaID
		}
		resolved, err := s.media.Resolve(ctx, mediaID)
		if err != nil {
			return entities.Announcement{}, err
		}
		mediaID = resolved.URL
	}

	if mediaIDSource == "" {
		mediaIDSource = entities.MediaSourceURL
	}

	mediaID = s.media.ProcessPlayMediaURL(mediaID)

	if preannounceMediaID != "" {
		if s.media.IsMediaSourceID(preannounceMediaID) {
			resolved, err := s.media.Resolve(ctx, preannounceMediaID)
			if err != nil {
				return entities.Announcement{}, err
			}
			preannounceMediaID = resolved.URL
		}
		preannounceMediaID = s.media.ProcessPlayMediaURL(preannounceMediaID)
	}

	return entities.Announcement{
		Message:            message,
		MediaID:            mediaID,
		OriginalMediaID:    originalMediaID,
		TTSToken:           ttsToken,
		MediaIDSource:      mediaIDSource,
		PreannounceMediaID: preannounceMediaID,
	}, nil
}
