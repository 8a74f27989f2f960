// Package speech defines the speech-to-text and text-to-speech collaborator
// contracts consumed by the conversation machine, plus in-memory
// implementations used by tests and the simulated bridge. Real providers are
// adapted behind these two interfaces; the core never touches audio codecs.
package speech

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/dialmesh/core"
)

// Transcriber converts caller audio into text. Transcribe blocks until one
// utterance is available, the context is done, or the stream ends. A
// deadline overrun surfaces as a wrapped core.ErrProviderTimeout; the dialog
// machine recovers it with a re-prompt, never a crash.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader) (string, error)
}

// Synthesizer converts agent text into playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (io.Reader, error)
}

// LineTranscriber is a Transcriber for simulated calls: every line of the
// audio stream is one spoken utterance. It is the transcriber the sim
// bridge pairs with.
type LineTranscriber struct{}

// NewLineTranscriber constructs the line-per-utterance transcriber.
func NewLineTranscriber() *LineTranscriber { return &LineTranscriber{} }

// Transcribe reads the next line from the audio stream. It honors context
// cancellation and maps deadline expiry to core.ErrProviderTimeout.
func (t *LineTranscriber) Transcribe(ctx context.Context, audio io.Reader) (string, error) {
	type lineResult struct {
		text string
		err  error
	}
	ch := make(chan lineResult, 1)
	go func() {
		r := bufio.NewReader(audio)
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\n")
		if err != nil && line == "" {
			ch <- lineResult{err: err}
			return
		}
		ch <- lineResult{text: line}
	}()

	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("transcribe: %w", core.ErrProviderTimeout)
		}
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return "", fmt.Errorf("transcribe: %w", res.err)
		}
		return res.text, nil
	}
}

// TextSynthesizer is a Synthesizer for simulated calls: the "audio" is the
// text itself, newline-terminated so a LineTranscriber on the other side
// can read it back.
type TextSynthesizer struct{}

// NewTextSynthesizer constructs the pass-through synthesizer.
func NewTextSynthesizer() *TextSynthesizer { return &TextSynthesizer{} }

// Synthesize implements Synthesizer.
func (s *TextSynthesizer) Synthesize(ctx context.Context, text string) (io.Reader, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return strings.NewReader(text + "\n"), nil
}
