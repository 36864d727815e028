// Package stt transcribes mono 16 kHz samples with whisper.cpp.
package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

type Options struct {
	Language      string // "auto", "en", ...
	Threads       int    // <=0 => NumCPU()
	BeamSize      int    // 0 = greedy
	InitialPrompt string // biases decoding toward names like the wake word
}

// Whisper holds one loaded model. Calls are serialized; a model context is
// created per clip.
type Whisper struct {
	model whisper.Model
	opt   Options
	mu    sync.Mutex
}

func NewWhisper(modelPath string, opt Options) (*Whisper, error) {
	if modelPath == "" {
		return nil, errors.New("stt: empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("stt: load model: %w", err)
	}
	if opt.Language == "" {
		opt.Language = "en"
	}
	if opt.Threads <= 0 {
		opt.Threads = runtime.NumCPU()
	}
	return &Whisper{model: m, opt: opt}, nil
}

func (w *Whisper) Close() error {
	return w.model.Close()
}

// Transcribe returns the trimmed text of all segments. Silence yields "".
func (w *Whisper) Transcribe(ctx context.Context, pcm []float32) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("stt: new context: %w", err)
	}
	if err := wctx.SetLanguage(w.opt.Language); err != nil {
		return "", fmt.Errorf("stt: set language: %w", err)
	}
	wctx.SetThreads(uint(w.opt.Threads))
	if w.opt.BeamSize > 0 {
		wctx.SetBeamSize(w.opt.BeamSize)
	}
	if w.opt.InitialPrompt != "" {
		wctx.SetInitialPrompt(w.opt.InitialPrompt)
	}

	if err := wctx.Process(pcm, nil, nil, nil); err != nil {
		return "", fmt.Errorf("stt: process: %w", err)
	}

	var parts []string
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("stt: next segment: %w", err)
		}
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}
