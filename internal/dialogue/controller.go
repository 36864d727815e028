// Package dialogue runs the listen, capture, generate and speak cycle.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"sophie/internal/audio"
	"sophie/internal/bus"
	"sophie/internal/conversation"
	"sophie/internal/llm"
	"sophie/internal/metrics"
	"sophie/internal/phrase"
	"sophie/internal/prompt"
	"sophie/pkg/audioconv"
)

// FallbackReply is spoken when the generation server answers with something
// unusable.
const FallbackReply = "Error. Idk what happened"

type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

type Classifier interface {
	Classify(ctx context.Context, transcript string) (phrase.Result, error)
}

type Knowledge interface {
	Lookup(ctx context.Context, utterance string) (facts string, ok bool, err error)
}

type Voice interface {
	Speak(ctx context.Context, text string) error
}

type Chimer interface {
	Chime(ctx context.Context) error
}

type Ducker interface {
	Duck(ctx context.Context) error
	Restore(ctx context.Context) error
}

type Publisher interface {
	Publish(kind, content string)
}

// Deps are the collaborators of a Controller. Prompt, Generator, Voice and
// History are required; Respond needs nothing else. Run also needs Capture,
// Transcriber and Matcher.
type Deps struct {
	Capture     audio.Capturer
	Transcriber Transcriber
	Matcher     Classifier
	Knowledge   Knowledge
	Prompt      *prompt.Builder
	Generator   llm.Generator
	Voice       Voice
	Chime       Chimer
	Ducker      Ducker
	Events      Publisher
	History     *conversation.State
	Metrics     *metrics.Metrics
}

type Options struct {
	Speaker       string
	ListenClip    time.Duration
	UtteranceClip time.Duration
	Location      *time.Location
	SaveDir       string        // utterance clips are written here when set
	RetryDelay    time.Duration // pause after a failed capture
	Now           func() time.Time
}

type Controller struct {
	Deps
	opt Options

	state    atomic.Int32
	commands chan Command
}

func New(d Deps, o Options) (*Controller, error) {
	var missing []string
	for name, ok := range map[string]bool{
		"prompt":    d.Prompt != nil,
		"generator": d.Generator != nil,
		"voice":     d.Voice != nil,
		"history":   d.History != nil,
	} {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("dialogue: missing %v", missing)
	}

	if d.Metrics == nil {
		d.Metrics = metrics.New(prometheus.NewRegistry())
	}
	if d.Events == nil {
		d.Events = nopPublisher{}
	}
	if o.Speaker == "" {
		o.Speaker = "User"
	}
	if o.ListenClip <= 0 {
		o.ListenClip = 3 * time.Second
	}
	if o.UtteranceClip <= 0 {
		o.UtteranceClip = 7 * time.Second
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}

	return &Controller{
		Deps:     d,
		opt:      o,
		commands: make(chan Command, 8),
	}, nil
}

func (c *Controller) State() State { return State(c.state.Load()) }

func (c *Controller) setState(s State) {
	if old := State(c.state.Swap(int32(s))); old != s {
		log.Debug("State", "from", old, "to", s)
	}
}

// Run cycles until ctx is done or the audio source is exhausted. Failures
// inside a cycle are logged and the cycle starts over.
func (c *Controller) Run(ctx context.Context) error {
	if c.Capture == nil || c.Transcriber == nil || c.Matcher == nil {
		return errors.New("dialogue: Run needs capture, transcriber and matcher")
	}
	log.Info("Listening", "wake", c.opt.ListenClip, "utterance", c.opt.UtteranceClip)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		if c.drainCommands(ctx) {
			err = c.Turn(ctx)
		} else {
			err = c.Step(ctx)
		}
		c.setState(Listening)

		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case exhausted(err):
			log.Info("Audio source exhausted")
			return nil
		default:
			log.Error("Cycle failed", "err", err)
			var de *audio.DeviceError
			if errors.As(err, &de) && !c.pause(ctx) {
				return ctx.Err()
			}
		}
	}
}

func exhausted(err error) bool {
	var de *audio.DeviceError
	return errors.As(err, &de) && errors.Is(de.Err, io.EOF)
}

func (c *Controller) pause(ctx context.Context) bool {
	if c.opt.RetryDelay <= 0 {
		return true
	}
	t := time.NewTimer(c.opt.RetryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Step records one listen clip and acts on the phrase it contains: a wake
// phrase starts a turn, a reset phrase clears history.
func (c *Controller) Step(ctx context.Context) error {
	c.setState(Listening)

	text, err := c.hear(ctx, c.opt.ListenClip, "listen")
	if err != nil {
		return err
	}

	res, err := c.Matcher.Classify(ctx, text)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	if res.Class == phrase.None {
		return nil
	}

	log.Info("Phrase detected", "class", res.Class, "phrase", res.Phrase, "text", text)
	c.Metrics.PhrasesDetected.WithLabelValues(res.Class.String()).Inc()

	switch res.Class {
	case phrase.Wake:
		c.Events.Publish(bus.KindWake, res.Phrase)
		c.chime(ctx)
		return c.Turn(ctx)
	case phrase.Reset:
		c.Reset(ctx)
	}
	return nil
}

// Turn records an utterance and answers it.
func (c *Controller) Turn(ctx context.Context) error {
	c.setState(Capturing)

	if c.Ducker != nil {
		if err := c.Ducker.Duck(ctx); err != nil {
			log.Warn("Failed to duck other audio", "err", err)
		}
	}
	pcm, err := c.record(ctx, c.opt.UtteranceClip, "capture")
	if c.Ducker != nil {
		if err := c.Ducker.Restore(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Failed to restore other audio", "err", err)
		}
	}
	if err != nil {
		c.Metrics.Turns.WithLabelValues(metrics.OutcomeAborted).Inc()
		return err
	}
	c.save(pcm)

	utterance, err := c.transcribe(ctx, pcm)
	if err != nil {
		c.Metrics.Turns.WithLabelValues(metrics.OutcomeAborted).Inc()
		return err
	}
	log.Info("Heard", "utterance", utterance)

	_, err = c.Respond(ctx, utterance)
	return err
}

// Respond generates and speaks a reply to utterance, then records the turn.
// An unusable generation response is replaced by FallbackReply; a server
// that cannot be reached aborts the turn without touching history. Speech
// failures are logged and the turn is recorded anyway.
func (c *Controller) Respond(ctx context.Context, utterance string) (string, error) {
	c.setState(Generating)
	start := time.Now()

	facts, ok := c.lookup(ctx, utterance)
	p := c.Prompt.Build(prompt.Context{
		Speaker:   c.opt.Speaker,
		Utterance: utterance,
		History:   c.History.Snapshot(),
		Facts:     facts,
		HasFacts:  ok,
		Time:      prompt.FormatTime(c.opt.Now(), c.opt.Location),
	})
	log.Debug("Prompt", "text", p)

	outcome := metrics.OutcomeCompleted
	reply, err := c.Generator.Generate(ctx, p)
	c.Metrics.Since("generate", start)
	switch {
	case errors.Is(err, llm.ErrBadResponse):
		log.Warn("Unusable generation response, using fallback", "err", err)
		c.Metrics.GenerationFallbacks.Inc()
		c.Events.Publish(bus.KindFallback, err.Error())
		reply, outcome = FallbackReply, metrics.OutcomeFallback
	case err != nil:
		c.Metrics.Turns.WithLabelValues(metrics.OutcomeAborted).Inc()
		return "", fmt.Errorf("generate: %w", err)
	}
	log.Info("Reply", "text", reply)

	c.setState(Speaking)
	start = time.Now()
	if err := c.Voice.Speak(ctx, reply); err != nil {
		log.Error("Failed to speak reply", "err", err)
		c.Metrics.SynthesisFailures.Inc()
	}
	c.Metrics.Since("speak", start)

	c.History.Append(conversation.Turn{
		UserName:  c.opt.Speaker,
		Utterance: utterance,
		Reply:     reply,
	})
	c.Metrics.HistoryTurns.Set(float64(c.History.Len()))
	c.Metrics.Turns.WithLabelValues(outcome).Inc()
	c.Events.Publish(bus.KindTurn, reply)

	return reply, nil
}

// Reset clears the conversation history and announces it.
func (c *Controller) Reset(ctx context.Context) {
	c.History.Reset()
	c.Metrics.HistoryTurns.Set(0)
	c.Events.Publish(bus.KindReset, "")
	log.Info("History cleared")
	c.chime(ctx)
}

func (c *Controller) hear(ctx context.Context, d time.Duration, stage string) (string, error) {
	pcm, err := c.record(ctx, d, stage)
	if err != nil {
		return "", err
	}
	return c.transcribe(ctx, pcm)
}

func (c *Controller) record(ctx context.Context, d time.Duration, stage string) ([]float32, error) {
	defer c.Metrics.Since(stage, time.Now())
	pcm, err := c.Capture.Record(ctx, d)
	if err != nil {
		c.Metrics.CaptureFailures.Inc()
		return nil, fmt.Errorf("record: %w", err)
	}
	return pcm, nil
}

func (c *Controller) transcribe(ctx context.Context, pcm []float32) (string, error) {
	defer c.Metrics.Since("transcribe", time.Now())
	text, err := c.Transcriber.Transcribe(ctx, pcm)
	if err != nil {
		c.Metrics.CaptureFailures.Inc()
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return text, nil
}

func (c *Controller) lookup(ctx context.Context, utterance string) (string, bool) {
	if c.Knowledge == nil {
		return "", false
	}
	facts, ok, err := c.Knowledge.Lookup(ctx, utterance)
	if err != nil {
		log.Warn("Knowledge lookup failed", "err", err)
		return "", false
	}
	return facts, ok
}

func (c *Controller) chime(ctx context.Context) {
	if c.Chime == nil {
		return
	}
	if err := c.Chime.Chime(ctx); err != nil {
		log.Warn("Failed to play chime", "err", err)
	}
}

func (c *Controller) save(pcm []float32) {
	if c.opt.SaveDir == "" {
		return
	}
	name := "utterance-" + c.opt.Now().Format("20060102-150405.000") + ".wav"
	path := filepath.Join(c.opt.SaveDir, name)
	if err := audioconv.WriteWAVFile(path, pcm); err != nil {
		log.Warn("Failed to save utterance", "path", path, "err", err)
		return
	}
	log.Debug("Saved utterance", "path", path)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, string) {}
