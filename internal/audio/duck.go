package audio

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const maxVolume = 150

var volumeRe = regexp.MustCompile(`(\d+)\s*%`)

type sinkInput struct {
	ID     int
	Volume int
	App    string
}

// Pactl runs a pactl subcommand and returns its stdout.
type Pactl func(ctx context.Context, args ...string) ([]byte, error)

func execPactl(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "pactl", args...).Output()
}

// Ducker lowers the volume of other applications' PulseAudio streams while
// the user is speaking and restores them afterwards.
type Ducker struct {
	pactl  Pactl
	skip   map[string]bool
	factor float64
	floor  int
	fade   time.Duration

	mu    sync.Mutex
	saved map[int]int
}

type DuckOption func(*Ducker)

// WithPactl replaces the pactl executable.
func WithPactl(p Pactl) DuckOption {
	return func(d *Ducker) { d.pactl = p }
}

// WithFade sets how long volume changes take.
func WithFade(fade time.Duration) DuckOption {
	return func(d *Ducker) { d.fade = fade }
}

// NewDucker scales foreign streams by factor, never below floor percent.
// Streams whose application.name is in skip are left alone.
func NewDucker(factor float64, floor int, skip []string, opts ...DuckOption) *Ducker {
	d := &Ducker{
		pactl:  execPactl,
		skip:   make(map[string]bool, len(skip)),
		factor: factor,
		floor:  min(max(floor, 0), maxVolume),
		fade:   150 * time.Millisecond,
	}
	for _, s := range skip {
		d.skip[s] = true
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Duck is a no-op while already ducked.
func (d *Ducker) Duck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.saved != nil {
		return nil
	}

	inputs, err := d.list(ctx)
	if err != nil {
		return err
	}

	saved := make(map[int]int, len(inputs))
	var steps []fadeStep
	for _, in := range inputs {
		to := int(math.Round(float64(in.Volume) * d.factor))
		to = min(max(to, d.floor), maxVolume)
		saved[in.ID] = in.Volume
		steps = append(steps, fadeStep{id: in.ID, from: in.Volume, to: to})
	}
	d.saved = saved

	return d.apply(ctx, steps)
}

// Restore returns ducked streams to their saved volume. Streams that appeared
// after Duck are not touched. The saved volumes survive a failed listing so
// a later Restore can still undo the duck.
func (d *Ducker) Restore(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.saved == nil {
		return nil
	}

	inputs, err := d.list(ctx)
	if err != nil {
		return err
	}
	saved := d.saved
	d.saved = nil

	var steps []fadeStep
	for _, in := range inputs {
		if orig, ok := saved[in.ID]; ok {
			steps = append(steps, fadeStep{id: in.ID, from: in.Volume, to: orig})
		}
	}
	return d.apply(ctx, steps)
}

func (d *Ducker) list(ctx context.Context) ([]sinkInput, error) {
	out, err := d.pactl(ctx, "list", "sink-inputs")
	if err != nil {
		return nil, fmt.Errorf("audio: pactl list sink-inputs: %w", err)
	}
	var res []sinkInput
	for _, in := range parseSinkInputs(string(out)) {
		if !d.skip[in.App] {
			res = append(res, in)
		}
	}
	return res, nil
}

type fadeStep struct {
	id, from, to int
}

func (d *Ducker) apply(ctx context.Context, steps []fadeStep) error {
	if len(steps) == 0 {
		return nil
	}

	n := max(int(d.fade/(10*time.Millisecond)), 1)
	pause := d.fade / time.Duration(n)

	for i := 1; i <= n; i++ {
		frac := float64(i) / float64(n)
		for _, s := range steps {
			v := s.from + int(math.Round(float64(s.to-s.from)*frac))
			if err := d.setVolume(ctx, s.id, v); err != nil {
				return err
			}
		}
		if i < n && pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pause):
			}
		}
	}
	return nil
}

func (d *Ducker) setVolume(ctx context.Context, id, percent int) error {
	percent = min(max(percent, 0), maxVolume)
	_, err := d.pactl(ctx, "set-sink-input-volume", strconv.Itoa(id), strconv.Itoa(percent)+"%")
	if err != nil {
		return fmt.Errorf("audio: set volume of #%d: %w", id, err)
	}
	return nil
}

// parseSinkInputs reads the output of `pactl list sink-inputs`.
func parseSinkInputs(text string) []sinkInput {
	blocks := strings.Split(text, "Sink Input #")
	var res []sinkInput
	for _, block := range blocks[1:] {
		head, body, ok := strings.Cut(block, "\n")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(head))
		if err != nil {
			continue
		}

		in := sinkInput{ID: id}
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, "Volume:") && in.Volume == 0:
				if m := volumeRe.FindStringSubmatch(line); m != nil {
					in.Volume, _ = strconv.Atoi(m[1])
				}
			case strings.HasPrefix(line, "application.name =") && in.App == "":
				in.App = strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "application.name =")), `"`)
			}
		}
		if in.Volume == 0 && in.App == "" {
			continue
		}
		res = append(res, in)
	}
	return res
}
