package speech

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dialmesh/core"
)

// Interface compliance (compile-time assertion)
var (
	_ Transcriber = (*LineTranscriber)(nil)
	_ Synthesizer = (*TextSynthesizer)(nil)
)

func TestLineTranscriber_ReadsUtterances(t *testing.T) {
	tr := NewLineTranscriber()
	audio := strings.NewReader("hello\n2 kg rice\n")

	text, err := tr.Transcribe(context.Background(), audio)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	text, err = tr.Transcribe(context.Background(), audio)
	require.NoError(t, err)
	assert.Equal(t, "2 kg rice", text)

	_, err = tr.Transcribe(context.Background(), audio)
	assert.Error(t, err, "stream end surfaces as error")
}

func TestLineTranscriber_DeadlineMapsToProviderTimeout(t *testing.T) {
	tr := NewLineTranscriber()
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := tr.Transcribe(ctx, pr)
	assert.True(t, errors.Is(err, core.ErrProviderTimeout), "got %v", err)
}

func TestTextSynthesizer_RoundTrip(t *testing.T) {
	syn := NewTextSynthesizer()
	audio, err := syn.Synthesize(context.Background(), "your order is confirmed")
	require.NoError(t, err)

	text, err := NewLineTranscriber().Transcribe(context.Background(), audio)
	require.NoError(t, err)
	assert.Equal(t, "your order is confirmed", text)
}
