package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"squizy/internal/config"
)

// SampleRate of the PCM audio returned by the speech model (16-bit mono)
const SampleRate = 24000

// AudioSink plays raw 16-bit mono PCM
type AudioSink interface {
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}

// PacedSink writes audio to Out, if set, and waits for its playback duration
type PacedSink struct {
	Out io.Writer
}

// Duration returns how long pcm takes to play
func Duration(pcm []byte, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := len(pcm) / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

func (s PacedSink) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	if s.Out != nil {
		if _, err := s.Out.Write(pcm); err != nil {
			return err
		}
	}
	return wait(ctx, Duration(pcm, sampleRate))
}

// GeminiVoice speaks with the Gemini speech model
type GeminiVoice struct {
	gemini   *geminiClient
	cues     *Cues
	sink     AudioSink
	captions io.Writer
}

// NewGeminiVoice creates a voice that synthesizes with cfg's TTS model and plays
// into sink. Each line is also printed to captions when it is not nil.
func NewGeminiVoice(cfg *config.AIConfig, sink AudioSink, captions io.Writer) *GeminiVoice {
	return &GeminiVoice{
		gemini:   newGeminiClient(cfg),
		cues:     NewCues(cfg.Language),
		sink:     sink,
		captions: captions,
	}
}

func (v *GeminiVoice) Say(ctx context.Context, text string) error {
	if v.captions != nil {
		fmt.Fprintf(v.captions, "🦑 SQUIZY: %s\n", text)
	}
	pcm, err := v.gemini.callSpeech(ctx, v.gemini.config.Models.TTS, v.gemini.config.Voice, v.cues.Speaker(text))
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	return v.sink.Play(ctx, pcm, SampleRate)
}

// TextVoice prints lines and holds them for a reading-time estimate
type TextVoice struct {
	mu      sync.Mutex
	out     io.Writer
	perWord time.Duration
}

// NewTextVoice creates a text voice. perWord is the reading time per word.
func NewTextVoice(out io.Writer, perWord time.Duration) *TextVoice {
	return &TextVoice{out: out, perWord: perWord}
}

func (v *TextVoice) Say(ctx context.Context, text string) error {
	v.mu.Lock()
	_, err := fmt.Fprintf(v.out, "🦑 SQUIZY: %s\n", text)
	v.mu.Unlock()
	if err != nil {
		return err
	}
	return wait(ctx, time.Duration(len(strings.Fields(text)))*v.perWord)
}

// NewVoice picks the Gemini voice when an API key is configured, otherwise the
// text voice. Both print their lines to out.
func NewVoice(cfg *config.AIConfig, sink AudioSink, out io.Writer) Voice {
	if cfg.IsEnabled() {
		return NewGeminiVoice(cfg, sink, out)
	}
	return NewTextVoice(out, 300*time.Millisecond)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
