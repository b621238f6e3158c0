// Package app wires all herald subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run joins the voice channel and serves until ctx is cancelled,
// and Shutdown tears everything down in order.
//
// The pipeline is event-driven: platform frames feed the segmenter, finalized
// utterances run through transcription and gating, admitted transcripts
// become brain tasks, and streamed sentences land on the playback queue or
// the handoff router depending on the designated user's presence.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/novakeep/herald/internal/alert"
	"github.com/novakeep/herald/internal/brain"
	"github.com/novakeep/herald/internal/command"
	"github.com/novakeep/herald/internal/config"
	"github.com/novakeep/herald/internal/gate"
	"github.com/novakeep/herald/internal/handoff"
	"github.com/novakeep/herald/internal/health"
	"github.com/novakeep/herald/internal/observe"
	"github.com/novakeep/herald/internal/playback"
	"github.com/novakeep/herald/internal/segmenter"
	"github.com/novakeep/herald/internal/session"
	"github.com/novakeep/herald/internal/speech"
	"github.com/novakeep/herald/internal/task"
	"github.com/novakeep/herald/internal/transcribe"
	"github.com/novakeep/herald/internal/transcript"
	"github.com/novakeep/herald/pkg/audio"
	"github.com/novakeep/herald/pkg/provider/llm"
	"github.com/novakeep/herald/pkg/provider/stt"
	"github.com/novakeep/herald/pkg/provider/tts"
	"github.com/novakeep/herald/pkg/types"
)

// StoppedText is the spoken confirmation after an interrupt command.
const StoppedText = "Stopped."

// shutdownTimeout bounds the HTTP server drain during Shutdown.
const shutdownTimeout = 15 * time.Second

// Providers holds one interface value per provider slot, populated by
// main.go via the config registry (with resilience cascades already
// wrapped around the raw providers).
type Providers struct {
	LLM   llm.Provider
	STT   stt.Provider
	TTS   tts.Provider
	Audio audio.Platform
}

// App owns all subsystem lifetimes and orchestrates the herald pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers
	log       *slog.Logger
	metrics   *observe.Metrics

	corrector   *swapCorrector
	transcriber *transcribe.Transcriber
	gate        atomic.Pointer[gate.Gate]
	commands    atomic.Pointer[command.Detector]
	seg         *segmenter.Segmenter
	tasks       *task.Manager
	brain       *brain.Client
	queue       *playback.Queue
	player      *dynamicPlayer
	speech      *speech.Synthesizer
	handoff     *handoff.Router
	inbox       *alert.Inbox
	reconn      *session.Reconnector

	httpSrv *http.Server

	// lastTopic remembers the most recent admitted transcript for the
	// session-ended note.
	topicMu   sync.Mutex
	lastTopic string

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(cfg *config.Config, providers *Providers, log *slog.Logger, metrics *observe.Metrics) (*App, error) {
	if providers == nil || providers.LLM == nil || providers.STT == nil || providers.TTS == nil {
		return nil, errors.New("app: llm, stt, and tts providers are required")
	}
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		log:       log,
		metrics:   metrics,
	}

	a.corrector = &swapCorrector{}
	a.corrector.rebuild(cfg.Extras)
	a.transcriber = transcribe.New(providers.STT, a.corrector, log)

	a.gate.Store(gate.New(cfg.WakeWordEnabled, cfg.WakePhrases, cfg.ConversationWindow))
	a.commands.Store(command.NewDetector(cfg.Extras.StopPhrases, cfg.WakePhrases))

	a.player = &dynamicPlayer{}
	a.queue = playback.NewQueue(a.player)
	a.closers = append(a.closers, func() error {
		a.queue.Close()
		return nil
	})

	a.speech = speech.New(providers.TTS, a.queue, log)
	a.handoff = handoff.New(&channelPoster{app: a}, log)
	a.inbox = alert.NewInbox(alert.DefaultCapacity, alert.DefaultTTL)

	a.brain = brain.New(providers.LLM, cfg.SessionUser, brain.WithLogger(log))

	conv := task.NewConversationStore(cfg.HistoryCap, cfg.ConversationIdleTTL)
	a.tasks = task.NewManager(conv, a.runTask, a.queue, a.busyAck, log)

	segOpts := []segmenter.Option{
		segmenter.WithAllowedSpeakers(cfg.AllowedUsers),
		segmenter.WithDownsample(true),
		segmenter.WithLogger(log),
	}
	a.seg = segmenter.New(a.onUtterance, a.queue, segOpts...)

	a.queue.SetIdleFunc(a.maybeBriefing)

	a.initHTTP()
	return a, nil
}

// ── HTTP surface ─────────────────────────────────────────────────────────────

// initHTTP assembles the private HTTP mux: alert ingress, health probes,
// and the Prometheus scrape endpoint.
func (a *App) initHTTP() {
	mux := http.NewServeMux()

	alert.NewServer(a.inbox, a.cfg.AlertToken, a.handoff, a.metrics, a.log).Register(mux)

	checkers := []health.Checker{
		{Name: "voice", Check: a.checkVoice},
		{Name: "brain", Check: a.checkBrain},
	}
	// Providers that expose their own probe (the whisper sidecar) surface it
	// on /readyz as well.
	if hp, ok := a.providers.STT.(interface {
		Health(context.Context) error
	}); ok {
		checkers = append(checkers, health.Checker{Name: "stt", Check: hp.Health})
	}
	health.New(checkers...).Register(mux)

	mux.Handle("GET /metrics", promhttp.Handler())

	a.httpSrv = &http.Server{
		Addr:              a.cfg.ListenAddr(),
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// checkVoice reports readiness of the voice connection.
func (a *App) checkVoice(context.Context) error {
	if a.reconn == nil || a.reconn.Connection() == nil {
		return errors.New("voice connection not established")
	}
	return nil
}

// checkBrain reports whether the brain endpoint answers HTTP at all. Any
// status counts; only transport failures fail the probe.
func (a *App) checkBrain(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BrainURL, nil)
	if err != nil {
		return fmt.Errorf("brain probe: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("brain unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}

// ── Run / Shutdown ───────────────────────────────────────────────────────────

// Run joins the voice channel, starts the alert webhook server, and blocks
// until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	a.reconn = session.NewReconnector(session.ReconnectorConfig{
		Platform:  a.providers.Audio,
		GuildID:   a.cfg.GuildID,
		ChannelID: a.cfg.VoiceChannelID,
		OnReconnect: func(conn audio.Connection) {
			// Stale per-speaker buffers and timers are meaningless on a
			// fresh connection.
			a.seg.Reset()
			a.wireConnection(ctx, conn)
		},
	})

	conn, err := a.reconn.Connect(ctx)
	if err != nil {
		return fmt.Errorf("app: join voice channel: %w", err)
	}
	a.reconn.Monitor(ctx)
	a.closers = append(a.closers, a.reconn.Stop)
	a.wireConnection(ctx, conn)

	a.log.Info("herald running",
		"guild", a.cfg.GuildID,
		"voice_channel", a.cfg.VoiceChannelID,
		"allowed_users", len(a.cfg.AllowedUsers),
		"wake_word", a.cfg.WakeWordEnabled,
		"listen", a.cfg.ListenAddr(),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: alert webhook server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.httpSrv.Shutdown(shutCtx)
	})

	err = g.Wait()
	a.tasks.CancelAll()
	a.tasks.Wait()
	if err != nil {
		return err
	}
	return ctx.Err()
}

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))

		a.tasks.CancelAll()
		a.tasks.Wait()

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}

		a.log.Info("shutdown complete")
	})
	return shutdownErr
}

// wireConnection attaches the pipeline to a (new) voice connection: playback
// sink, speaking and presence callbacks, and the frame pump.
func (a *App) wireConnection(ctx context.Context, conn audio.Connection) {
	a.player.SetOutput(conn.Output())

	conn.OnSpeaking(a.seg.HandleSpeaking)
	conn.OnPresence(func(userID string, present bool) {
		a.onPresence(ctx, userID, present)
	})
	a.seedPresence(conn)

	go a.pumpFrames(ctx, conn)
}

// seedPresence initializes the designated user's presence from the voice
// channel's current membership. They are normally already in the channel
// when the connection comes up, so no join transition will ever fire for
// them; without the seed every reply would divert to text until they
// re-joined. Seeding is not a leave transition, so no session note is
// posted when the user turns out to be absent.
func (a *App) seedPresence(conn audio.Connection) {
	user := a.cfg.DesignatedUser()
	if user == "" {
		return
	}
	present := conn.Present(user)
	a.handoff.SetPresent(present)
	a.log.Info("designated user presence seeded", "user", user, "present", present)
	if present {
		a.maybeBriefing()
	}
}

// pumpFrames feeds platform frames into the segmenter until the connection's
// frame channel closes, then signals the reconnector.
func (a *App) pumpFrames(ctx context.Context, conn audio.Connection) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-conn.Frames():
			if !ok {
				a.log.Warn("voice frame stream closed; requesting reconnect")
				a.reconn.NotifyDisconnect()
				return
			}
			a.seg.HandleFrame(f)
		}
	}
}

// ── Utterance pipeline ───────────────────────────────────────────────────────

// onUtterance receives finalized utterances from the segmenter. It runs the
// rest of the pipeline on its own goroutine; segmenter timers must not block
// on provider calls.
func (a *App) onUtterance(u types.Utterance) {
	go a.handleUtterance(context.Background(), u)
}

// handleUtterance runs one utterance through transcription, gating, fast
// paths, and dispatch.
func (a *App) handleUtterance(ctx context.Context, u types.Utterance) {
	ctx, span := observe.StartSpan(ctx, "utterance")
	defer span.End()

	start := time.Now()
	tr, err := a.transcriber.Transcribe(ctx, u)
	a.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, transcribe.ErrNoSpeech) {
			a.metrics.RecordUtterance(ctx, "empty")
		} else {
			a.metrics.RecordUtterance(ctx, "stt_error")
			a.log.Warn("transcription failed", "speaker", u.Speaker, "err", err)
		}
		return
	}

	// Interrupt commands match against the raw transcript: "jarvis stop"
	// must work even when the wake gate would reject a bare "stop".
	if a.commands.Load().IsStop(tr.Text) {
		cancelled := a.tasks.CancelAll()
		a.metrics.RecordUtterance(ctx, "stop")
		a.log.Info("interrupt", "speaker", tr.Speaker, "cancelled", cancelled)
		if err := a.speech.SayPriority(ctx, StoppedText); err != nil {
			a.log.Warn("stop confirmation failed", "err", err)
		}
		return
	}

	admit, cleaned := a.gate.Load().Admit(tr.Text, tr.Speaker, time.Now())
	if !admit {
		a.metrics.RecordUtterance(ctx, "gated")
		a.log.Debug("dropped outside wake window", "speaker", tr.Speaker)
		return
	}

	a.handoff.NoteUserUtterance(time.Now())
	a.setLastTopic(cleaned)

	if a.gate.Load().Enabled() && command.IsWakeOnly(cleaned) {
		a.metrics.RecordUtterance(ctx, "wake_only")
		// The chime counts as a response: the speaker can follow up without
		// repeating the wake phrase.
		a.gate.Load().MarkAssistantResponded(tr.Speaker)
		a.speech.Chime(ctx)
		return
	}

	a.metrics.RecordUtterance(ctx, "dispatched")
	id := a.tasks.Dispatch(ctx, tr.Speaker, cleaned)
	a.log.Info("dispatched task", "task", id, "speaker", tr.Speaker, "len", len(cleaned))
}

// runTask is the task.WorkFunc: it streams one brain completion and routes
// each sentence to voice or text.
func (a *App) runTask(ctx context.Context, t task.Task) task.Outcome {
	ctx, span := observe.StartSpan(ctx, "task")
	defer span.End()

	start := time.Now()
	spoke := false

	var collected []string
	deliver := func(sentence string) {
		spoke = true
		if a.handoff.Present() {
			a.metrics.RecordSentence(ctx, "voice")
			if err := a.speech.Speak(ctx, t.ID, sentence); err != nil {
				a.log.Warn("sentence skipped", "task", t.ID, "err", err)
			}
			return
		}
		a.metrics.RecordSentence(ctx, "handoff")
		a.handoff.Divert(t.ID, sentence)
	}

	onSentence := deliver
	if !a.cfg.StreamingTTS {
		// Whole-reply mode: collect sentences and synthesize once.
		onSentence = func(sentence string) {
			collected = append(collected, sentence)
		}
	}

	res := a.brain.Stream(ctx, t.Transcript, t.History, onSentence)
	a.metrics.BrainDuration.Record(ctx, time.Since(start).Seconds())

	if !a.cfg.StreamingTTS && !res.Aborted && len(collected) > 0 {
		deliver(joinSentences(collected))
	}

	switch {
	case res.Aborted:
		a.handoff.Drop(t.ID)
		a.metrics.RecordTask(ctx, "cancelled")

	case res.Err != nil:
		apology := brain.ApologyText
		if !spoke {
			apology = brain.FallbackText
		}
		a.log.Warn("brain stream failed", "task", t.ID, "err", res.Err)
		deliver(apology)
		a.metrics.RecordTask(ctx, "error")
		// Error replies still count as assistant responses: the speaker can
		// retry without repeating the wake phrase.
		a.gate.Load().MarkAssistantResponded(t.Speaker)

	default:
		a.metrics.RecordTask(ctx, "completed")
		a.gate.Load().MarkAssistantResponded(t.Speaker)
	}

	if a.handoff.Pending(t.ID) {
		if err := a.handoff.Flush(ctx, t.ID); err != nil {
			a.log.Warn("handoff flush failed", "task", t.ID, "err", err)
		}
	}

	a.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds())
	return task.Outcome{FullText: res.Text, Aborted: res.Aborted, Err: res.Err}
}

// busyAck speaks a short acknowledgment when a dispatch lands while other
// tasks are still running.
func (a *App) busyAck() {
	if !a.handoff.Present() {
		return
	}
	if err := a.speech.SayPriority(context.Background(), task.AckText); err != nil {
		a.log.Warn("busy ack failed", "err", err)
	}
}

// ── Presence and alerts ──────────────────────────────────────────────────────

// onPresence reacts to the designated user joining or leaving voice.
func (a *App) onPresence(ctx context.Context, userID string, present bool) {
	if userID != a.cfg.DesignatedUser() {
		return
	}
	a.handoff.SetPresent(present)
	a.log.Info("designated user presence", "user", userID, "present", present)

	if present {
		a.maybeBriefing()
		return
	}

	go func() {
		if err := a.handoff.NoteSessionEnded(ctx, a.getLastTopic()); err != nil {
			a.log.Warn("session note failed", "err", err)
		}
	}()
}

// maybeBriefing delivers queued alerts as one spoken briefing when the
// assistant is otherwise quiet: user present, no running tasks, empty queue.
func (a *App) maybeBriefing() {
	if !a.handoff.Present() || a.tasks.ActiveCount() > 0 || a.queue.Playing() {
		return
	}
	if a.inbox.Len() == 0 {
		return
	}

	text := alert.BriefingText(a.inbox.DrainBriefing())
	if text == "" {
		return
	}
	a.log.Info("delivering alert briefing")
	if err := a.speech.SayPriority(context.Background(), text); err != nil {
		a.log.Warn("briefing failed", "err", err)
	}
}

// ── Hot reload ───────────────────────────────────────────────────────────────

// ReloadExtras applies a changed YAML overlay: corrector vocabulary, extra
// stop phrases, and extra wake phrases. Env-derived settings never change.
func (a *App) ReloadExtras(old, updated *config.Extras) {
	d := config.DiffExtras(old, updated)
	if !d.Any() {
		return
	}

	if d.CorrectionsChanged {
		a.corrector.rebuild(updated)
		a.log.Info("reloaded transcript corrections",
			"substitutions", len(updated.Corrections),
			"vocabulary", len(updated.Vocabulary),
		)
	}
	if d.StopPhrasesChanged || d.WakePhrasesChanged {
		wake := append(append([]string{}, a.cfg.WakePhrases...), updated.WakePhrases...)
		a.commands.Store(command.NewDetector(updated.StopPhrases, wake))
		if d.WakePhrasesChanged {
			a.gate.Store(gate.New(a.cfg.WakeWordEnabled, wake, a.cfg.ConversationWindow))
		}
		a.log.Info("reloaded command phrases")
	}
}

// ── Small glue types ─────────────────────────────────────────────────────────

func (a *App) setLastTopic(s string) {
	a.topicMu.Lock()
	a.lastTopic = s
	a.topicMu.Unlock()
}

func (a *App) getLastTopic() string {
	a.topicMu.Lock()
	defer a.topicMu.Unlock()
	return a.lastTopic
}

// joinSentences reassembles a whole reply from streamed sentences.
func joinSentences(sentences []string) string {
	switch len(sentences) {
	case 0:
		return ""
	case 1:
		return sentences[0]
	}
	out := sentences[0]
	for _, s := range sentences[1:] {
		out += " " + s
	}
	return out
}

// dynamicPlayer forwards Play to a SinkPlayer bound to the current voice
// connection's output. Reconnection swaps the sink without disturbing the
// queue worker.
type dynamicPlayer struct {
	mu  sync.Mutex
	out chan<- audio.AudioFrame
}

var _ playback.Player = (*dynamicPlayer)(nil)

func (p *dynamicPlayer) SetOutput(out chan<- audio.AudioFrame) {
	p.mu.Lock()
	p.out = out
	p.mu.Unlock()
}

func (p *dynamicPlayer) Play(ctx context.Context, clip tts.Clip) error {
	p.mu.Lock()
	out := p.out
	p.mu.Unlock()
	if out == nil {
		return errors.New("playback: no voice connection")
	}
	return (&playback.SinkPlayer{Out: out}).Play(ctx, clip)
}

// channelPoster posts handoff text through the current voice connection.
type channelPoster struct {
	app *App
}

var _ handoff.TextPoster = (*channelPoster)(nil)

func (p *channelPoster) PostText(_ context.Context, text string) error {
	if p.app.cfg.TextChannelID == "" {
		return errors.New("handoff: no text channel configured")
	}
	r := p.app.reconn
	if r == nil {
		return errors.New("handoff: no platform connection")
	}
	conn := r.Connection()
	if conn == nil {
		return errors.New("handoff: no platform connection")
	}
	return conn.PostText(p.app.cfg.TextChannelID, text)
}

// swapCorrector wraps the transcript corrector behind an atomic pointer so
// the watcher can rebuild it without pausing transcription.
type swapCorrector struct {
	ptr atomic.Pointer[transcript.Corrector]
}

var _ transcribe.Corrector = (*swapCorrector)(nil)

func (s *swapCorrector) rebuild(extras *config.Extras) {
	s.ptr.Store(transcript.NewCorrector(extras.Corrections, extras.Vocabulary))
}

func (s *swapCorrector) Correct(text string) string {
	return s.ptr.Load().Correct(text)
}
