package satellite

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hearthd/hearth/domain/entities"
	"github.com/hearthd/hearth/domain/repositories"
	"github.com/hearthd/hearth/session"
)

// DefaultPreannounceURL is the sound played before announcements unless the
// caller overrides it.
const DefaultPreannounceURL = "/static/sounds/preannounce.mp3"

// Authorization contexts older than this are re-minted before a new
// pipeline run starts.
const contextRecentTime = 5 * time.Second

// Options wires a Satellite to its selector entities and TTS defaults
type Options struct {
	// PipelineEntityID is the select entity holding the pipeline choice.
	// Empty means "always use the preferred pipeline".
	PipelineEntityID string

	// VadSensitivityEntityID is the select entity holding the VAD
	// sensitivity choice. Empty means the default sensitivity.
	VadSensitivityEntityID string

	// TTSOptions are device-level synthesis options merged over the
	// pipeline's own TTS options.
	TTSOptions map[string]string

	// OnStateChange is invoked on every visible state change. It must not
	// call back into the Satellite.
	OnStateChange func(state entities.SatelliteState)
}

// Satellite orchestrates one voice satellite: it owns the visible state, at
// most one in-flight pipeline run, and the announce/start-conversation/
// ask-question operations, which are mutually exclusive among themselves.
type Satellite struct {
	logger    *zap.Logger
	device    Device
	runner    repositories.PipelineRunner
	tts       repositories.TextToSpeech
	media     repositories.MediaResolver
	pipelines repositories.PipelineStore
	states    repositories.StateStore
	sessions  *session.Manager
	opts      Options

	mu    sync.Mutex
	state entities.SatelliteState

	conversationID    string
	extraSystemPrompt string
	runHasTTS         bool
	isAnnouncing      bool

	wakeWordIntercept *future[string]
	askQuestion       *future[*string]

	pipelineCancel context.CancelFunc
	pipelineDone   chan struct{}

	authContext entities.AuthContext
}

// New creates a satellite orchestrator for one device
func New(
	device Device,
	runner repositories.PipelineRunner,
	tts repositories.TextToSpeech,
	media repositories.MediaResolver,
	pipelines repositories.PipelineStore,
	states repositories.StateStore,
	sessions *session.Manager,
	opts Options,
	logger *zap.Logger,
) *Satellite {
	return &Satellite{
		logger:    logger,
		device:    device,
		runner:    runner,
		tts:       tts,
		media:     media,
		pipelines: pipelines,
		states:    states,
		sessions:  sessions,
		opts:      opts,
		state:     entities.SatelliteStateIdle,
	}
}

// State returns the current visible state
func (s *Satellite) State() entities.SatelliteState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Device returns the device this orchestrator drives
func (s *Satellite) Device() Device {
	return s.device
}

// Configuration returns the device's wake word capability surface
func (s *Satellite) Configuration() entities.SatelliteConfiguration {
	return s.device.Configuration()
}

// SetConfiguration validates and pushes a new wake word configuration.
// Device I/O errors propagate unmodified.
func (s *Satellite) SetConfiguration(ctx context.Context, config entities.SatelliteConfiguration) error {
	if err := config.Validate(); err != nil {
		return err
	}
	return s.device.SetConfiguration(ctx, config)
}

// AnnounceRequest is the input to Announce
type AnnounceRequest struct {
	Message            string `json:"message,omitempty"`
	MediaID            string `json:"media_id,omitempty"`
	Preannounce        bool   `json:"preannounce"`
	PreannounceMediaID string `json:"preannounce_media_id,omitempty"`
}

// Announce plays an announcement on the satellite and blocks until the
// device reports it finished. If MediaID is empty the message is synthesized
// with the selected pipeline's TTS engine.
func (s *Satellite) Announce(ctx context.Context, req AnnounceRequest) error {
	s.cancelRunningPipeline()

	announcement, err := s.resolveAnnouncement(ctx, req.Message, req.MediaID, resolvePreannounce(req.Preannounce, req.PreannounceMediaID))
	if err != nil {
		return err
	}

	if err := s.beginAnnouncing(); err != nil {
		return err
	}
	defer s.endAnnouncing()

	return s.device.Announce(ctx, announcement)
}

// StartConversationRequest is the input to StartConversation
type StartConversationRequest struct {
	StartMessage       string `json:"start_message,omitempty"`
	StartMediaID       string `json:"start_media_id,omitempty"`
	ExtraSystemPrompt  string `json:"extra_system_prompt,omitempty"`
	Preannounce        bool   `json:"preannounce"`
	PreannounceMediaID string `json:"preannounce_media_id,omitempty"`
}

// StartConversation speaks a start message on the satellite and leaves the
// device listening for the user's reply. A fresh conversation is always
// established; this operation never continues a prior session.
func (s *Satellite) StartConversation(ctx context.Context, req StartConversationRequest) error {
	s.cancelRunningPipeline()

	// The built-in conversation agent cannot originate conversations.
	pipeline, err := s.currentPipeline()
	if err != nil {
		return err
	}
	if pipeline.ConversationEngine == entities.ConversationEngineBuiltin {
		return &ConfigurationError{Message: "built-in conversation agent does not support starting conversations"}
	}

	announcement, err := s.resolveAnnouncement(ctx, req.StartMessage, req.StartMediaID, resolvePreannounce(req.Preannounce, req.PreannounceMediaID))
	if err != nil {
		return err
	}

	if err := s.beginAnnouncing(); err != nil {
		return err
	}
	defer s.endAnnouncing()

	// Hand the start message to the agent so it understands the context of
	// the user's reply.
	s.mu.Lock()
	if req.ExtraSystemPrompt != "" {
		s.extraSystemPrompt = req.ExtraSystemPrompt
	} else {
		s.extraSystemPrompt = req.StartMessage
	}
	s.mu.Unlock()

	sess, err := s.sessions.New(ctx, s.device.ID())
	if err != nil {
		s.clearConversationContext()
		return err
	}

	s.mu.Lock()
	s.conversationID = sess.ID
	s.mu.Unlock()

	if req.StartMessage != "" {
		if err := s.sessions.AddAssistantMessage(ctx, sess, req.StartMessage, s.device.ID()); err != nil {
			s.clearConversationContext()
			return err
		}
	}

	if err := s.device.StartConversation(ctx, announcement); err != nil {
		// Clear pending context so it does not leak into the next
		// interaction.
		s.clearConversationContext()
		return err
	}

	return nil
}

// AskQuestionRequest is the input to AskQuestion
type AskQuestionRequest struct {
	Question           string                     `json:"question,omitempty"`
	QuestionMediaID    string                     `json:"question_media_id,omitempty"`
	Preannounce        bool                       `json:"preannounce"`
	PreannounceMediaID string                     `json:"preannounce_media_id,omitempty"`
	Answers            []entities.AnswerCandidate `json:"answers,omitempty"`
}

// AskQuestion speaks a question on the satellite, waits for the user's
// spoken reply, and matches it against the caller's answer candidates.
func (s *Satellite) AskQuestion(ctx context.Context, req AskQuestionRequest) (entities.Answer, error) {
	s.cancelRunningPipeline()

	announcement, err := s.resolveAnnouncement(ctx, req.Question, req.QuestionMediaID, resolvePreannounce(req.Preannounce, req.PreannounceMediaID))
	if err != nil {
		return entities.Answer{}, err
	}

	if err := s.beginAnnouncing(); err != nil {
		return entities.Answer{}, err
	}

	answerFuture := newFuture[*string]()
	s.mu.Lock()
	s.askQuestion = answerFuture
	s.mu.Unlock()

	defer func() {
		s.endAnnouncing()
		s.mu.Lock()
		s.askQuestion = nil
		s.mu.Unlock()
	}()

	// Wait for the question to finish playing, then for the transcription.
	if err := s.device.StartConversation(ctx, announcement); err != nil {
		return entities.Answer{}, err
	}

	responseText, err := answerFuture.await(ctx)
	if err != nil {
		return entities.Answer{}, err
	}
	if responseText == nil {
		return entities.Answer{}, ErrNoAnswer
	}

	if len(req.Answers) == 0 {
		return entities.Answer{Sentence: *responseText}, nil
	}

	return MatchAnswer(*responseText, req.Answers), nil
}

// InterceptWakeWord blocks until the next pipeline run reports a wake word
// detection and returns the detected phrase without running a pipeline.
func (s *Satellite) InterceptWakeWord(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.wakeWordIntercept != nil {
		s.mu.Unlock()
		return "", ErrSatelliteBusy
	}
	interceptFuture := newFuture[string]()
	s.wakeWordIntercept = interceptFuture
	s.mu.Unlock()

	s.logger.Debug("next wake word will be intercepted", zap.String("deviceID", s.device.ID()))

	defer func() {
		s.mu.Lock()
		s.wakeWordIntercept = nil
		s.mu.Unlock()
	}()

	return interceptFuture.await(ctx)
}

// AcceptPipelineFromSatellite is the entry point for a satellite device
// pushing a live audio stream into the hub. It preempts any running
// pipeline, then runs exactly one pipeline over the stream, blocking until
// the run finishes or is preempted in turn.
func (s *Satellite) AcceptPipelineFromSatellite(
	ctx context.Context,
	audioStream <-chan []byte,
	startStage entities.PipelineStage,
	endStage entities.PipelineStage,
	wakeWordPhrase string,
) error {
	s.cancelRunningPipeline()

	// Consume the extra system prompt so it applies to exactly one run.
	s.mu.Lock()
	extraSystemPrompt := s.extraSystemPrompt
	s.extraSystemPrompt = ""
	interceptFuture := s.wakeWordIntercept
	s.mu.Unlock()

	if interceptFuture != nil && (startStage == entities.PipelineStageWakeWord || startStage == entities.PipelineStageSTT) {
		if startStage == entities.PipelineStageWakeWord {
			interceptFuture.reject(ErrWakeWordInterceptUnsupported)
			return nil
		}

		// Intercept the on-device wake word and end immediately; no
		// pipeline runs.
		s.logger.Debug("intercepted wake word",
			zap.String("wakeWordPhrase", wakeWordPhrase),
			zap.String("deviceID", s.device.ID()))

		if wakeWordPhrase == "" {
			interceptFuture.reject(ErrNoWakeWordPhrase)
		} else {
			interceptFuture.resolve(wakeWordPhrase)
		}
		s.handlePipelineEvent(entities.PipelineEvent{Type: entities.PipelineEventRunEnd})
		return nil
	}

	s.mu.Lock()
	// While a question is pending the caller only wants the transcription;
	// stop the pipeline right after speech-to-text.
	if s.askQuestion != nil && startStage == entities.PipelineStageSTT {
		endStage = entities.PipelineStageSTT
	}

	// Refresh the authorization context if it has gone stale.
	if s.authContext.ID == "" || time.Since(s.authContext.CreatedAt) > contextRecentTime {
		s.authContext = entities.AuthContext{ID: uuid.NewString(), CreatedAt: time.Now()}
	}
	authContext := s.authContext

	s.runHasTTS = false
	conversationID := s.conversationID
	s.mu.Unlock()

	pipelineID, err := s.resolvePipeline()
	if err != nil {
		return err
	}
	silenceSeconds, err := s.resolveVadSensitivity()
	if err != nil {
		return err
	}

	// If the stored conversation id is no longer valid the session manager
	// mints a fresh one.
	sess, err := s.sessions.Resolve(ctx, s.device.ID(), conversationID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conversationID = sess.ID
	s.mu.Unlock()

	input := repositories.PipelineInput{
		AudioStream:       audioStream,
		EventCallback:     s.handlePipelineEvent,
		AuthContext:       authContext,
		STTMetadata:       entities.DefaultSpeechMetadata(),
		PipelineID:        pipelineID,
		ConversationID:    sess.ID,
		DeviceID:          s.device.ID(),
		TTSAudioOutput:    s.opts.TTSOptions,
		WakeWordPhrase:    wakeWordPhrase,
		AudioSettings:     entities.AudioSettings{SilenceSeconds: silenceSeconds, VadEnabled: true},
		StartStage:        startStage,
		EndStage:          endStage,
		ExtraSystemPrompt: extraSystemPrompt,
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var runErr error

	// Another caller may have started a run between the preemption above and
	// here. Install the handle only while none is published; otherwise cancel
	// the other run, wait it out, and try again.
	for {
		s.mu.Lock()
		if s.pipelineDone == nil {
			s.pipelineCancel = cancel
			s.pipelineDone = done
			s.mu.Unlock()
			break
		}
		otherCancel := s.pipelineCancel
		otherDone := s.pipelineDone
		s.mu.Unlock()

		otherCancel()
		<-otherDone

		s.mu.Lock()
		if s.pipelineDone == otherDone {
			s.pipelineCancel = nil
			s.pipelineDone = nil
		}
		s.mu.Unlock()
	}

	go func() {
		defer close(done)
		runErr = s.runner.Run(runCtx, input)
	}()

	<-done

	s.mu.Lock()
	if s.pipelineDone == done {
		s.pipelineCancel = nil
		s.pipelineDone = nil
	}
	s.mu.Unlock()
	cancel()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// TTSResponseFinished is the device's signal that response playback ended.
// A tts-end event alone does not mean playback finished; synthesis and
// playback are decoupled.
func (s *Satellite) TTSResponseFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStateLocked(entities.SatelliteStateIdle)
}

// cancelRunningPipeline cancels the in-flight pipeline run, if any, and
// waits for it to unwind. The handle stays published until the run has
// fully unwound, so concurrent preemptors all wait on the same run instead
// of assuming it already finished. The cancellation itself is expected
// control flow and never surfaces as a failure.
func (s *Satellite) cancelRunningPipeline() {
	s.mu.Lock()
	cancel := s.pipelineCancel
	done := s.pipelineDone
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.mu.Lock()
	if s.pipelineDone == done {
		s.pipelineCancel = nil
		s.pipelineDone = nil
	}
	s.mu.Unlock()
}

// handlePipelineEvent interprets a pipeline event, updates the visible
// state, and only then forwards the event to the device hook.
func (s *Satellite) handlePipelineEvent(event entities.PipelineEvent) {
	s.mu.Lock()
	switch event.Type {
	case entities.PipelineEventWakeWordStart:
		// Do not interrupt a response in progress; the state returns to
		// idle in TTSResponseFinished.
		if s.state != entities.SatelliteStateResponding {
			s.setStateLocked(entities.SatelliteStateIdle)
		}

	case entities.PipelineEventSTTStart:
		s.setStateLocked(entities.SatelliteStateListening)

	case entities.PipelineEventSTTEnd:
		if s.askQuestion != nil && !s.askQuestion.resolved() && event.Data != nil {
			if text, ok := event.STTOutputText(); ok {
				s.askQuestion.resolve(&text)
			} else {
				s.askQuestion.resolve(nil)
			}
		}

	case entities.PipelineEventIntentStart:
		s.setStateLocked(entities.SatelliteStateProcessing)

	case entities.PipelineEventTTSStart:
		// Stay in responding until TTSResponseFinished is called.
		s.runHasTTS = true
		s.setStateLocked(entities.SatelliteStateResponding)

	case entities.PipelineEventRunEnd:
		if !s.runHasTTS {
			s.setStateLocked(entities.SatelliteStateIdle)
		}
		if s.askQuestion != nil && !s.askQuestion.resolved() {
			// The run ended without capturing any text.
			s.askQuestion.resolve(nil)
		}
	}
	s.mu.Unlock()

	s.device.OnPipelineEvent(event)
}

// setStateLocked sets the visible state and publishes it. Callers must hold
// the mutex.
func (s *Satellite) setStateLocked(state entities.SatelliteState) {
	s.state = state
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(state)
	}
}

// beginAnnouncing marks the start of a busy operation, moving the satellite
// to responding.
func (s *Satellite) beginAnnouncing() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isAnnouncing {
		return ErrSatelliteBusy
	}
	s.isAnnouncing = true
	s.setStateLocked(entities.SatelliteStateResponding)
	return nil
}

// endAnnouncing clears the busy flag and restores idle on every exit path.
func (s *Satellite) endAnnouncing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isAnnouncing = false
	s.setStateLocked(entities.SatelliteStateIdle)
}

func (s *Satellite) clearConversationContext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationID = ""
	s.extraSystemPrompt = ""
}

// currentPipeline resolves and fetches the pipeline for the next run
func (s *Satellite) currentPipeline() (*entities.Pipeline, error) {
	pipelineID, err := s.resolvePipeline()
	if err != nil {
		return nil, err
	}
	return s.pipelines.Get(pipelineID)
}

// resolvePipeline maps the pipeline select entity to a pipeline id. An
// empty id defers to the preferred pipeline.
func (s *Satellite) resolvePipeline() (string, error) {
	if s.opts.PipelineEntityID == "" {
		return "", nil
	}

	state, ok := s.states.Get(s.opts.PipelineEntityID)
	if !ok {
		return "", &EntityNotFoundError{EntityID: s.opts.PipelineEntityID, Kind: "pipeline"}
	}

	if state != entities.OptionPreferred {
		for _, pipeline := range s.pipelines.List() {
			if pipeline.Name == state {
				return pipeline.ID, nil
			}
		}
	}

	return "", nil
}

// resolveVadSensitivity maps the VAD select entity to a silence duration in
// seconds
func (s *Satellite) resolveVadSensitivity() (float64, error) {
	sensitivity := entities.VadSensitivityDefault

	if s.opts.VadSensitivityEntityID != "" {
		state, ok := s.states.Get(s.opts.VadSensitivityEntityID)
		if !ok {
			return 0, &EntityNotFoundError{EntityID: s.opts.VadSensitivityEntityID, Kind: "VAD sensitivity"}
		}
		sensitivity = entities.VadSensitivity(state)
	}

	return sensitivity.Seconds(), nil
}

// resolvePreannounce picks the pre-announcement sound for an operation:
// empty when disabled, the caller's override when given, the default
// otherwise.
func resolvePreannounce(preannounce bool, override string) string {
	if !preannounce {
		return ""
	}
	if override != "" {
		return override
	}
	return DefaultPreannounceURL
}
