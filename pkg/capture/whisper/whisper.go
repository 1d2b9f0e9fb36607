// Package whisper provides a capture.Recognizer backed by the whisper.cpp
// CGO bindings for clients whose platform has no native speech recognition.
// Raw 16-bit signed little-endian PCM is pulled from a Source until the
// speaker falls silent (or the utterance budget is exhausted), then the
// buffered speech is transcribed in one shot.
//
// The whisper.cpp static library (libwhisper.a) and headers (whisper.h) must
// be available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/vaanibank/vaani/pkg/capture"
)

const (
	// rmsThreshold is the root-mean-square energy level (16-bit PCM scale)
	// below which a chunk counts as silence.
	rmsThreshold = 300.0

	defaultLanguage       = "en"
	defaultSampleRate     = 16000
	defaultSilenceMs      = 700
	defaultMaxUtteranceMs = 10_000
)

// Source supplies PCM audio chunks for one capture activation. It returns
// io.EOF when the client stops sending audio. Implementations typically read
// from the presentation bridge's audio channel.
type Source interface {
	ReadChunk(ctx context.Context) ([]byte, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]byte, error)

// ReadChunk calls f.
func (f SourceFunc) ReadChunk(ctx context.Context) ([]byte, error) { return f(ctx) }

// Option is a functional option for configuring a Recognizer.
type Option func(*Recognizer)

// WithLanguage sets the transcription language code (e.g., "en", "hi").
// Defaults to "en".
func WithLanguage(lang string) Option {
	return func(r *Recognizer) { r.language = lang }
}

// WithSampleRate sets the PCM sample rate in Hz. Must match the audio the
// Source delivers. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(r *Recognizer) { r.sampleRate = rate }
}

// WithSilenceThresholdMs sets the consecutive-silence duration (ms) that ends
// the utterance. Defaults to 700 ms.
func WithSilenceThresholdMs(ms int) Option {
	return func(r *Recognizer) { r.silenceMs = ms }
}

// WithMaxUtteranceMs caps the buffered utterance duration (ms) before a
// forced transcription. Defaults to 10 000 ms.
func WithMaxUtteranceMs(ms int) Option {
	return func(r *Recognizer) { r.maxUtteranceMs = ms }
}

// Recognizer implements capture.Recognizer using a shared whisper.cpp model.
// The model is loaded once; each Capture call creates its own inference
// context, so concurrent activations (one per dialog session, serialised by
// capture.Guard per session) do not interfere.
type Recognizer struct {
	model  whisperlib.Model
	source Source

	language       string
	sampleRate     int
	silenceMs      int
	maxUtteranceMs int
}

// New loads the whisper.cpp model at modelPath and returns a Recognizer that
// pulls audio from source. The caller must call Close when done.
func New(modelPath string, source Source, opts ...Option) (*Recognizer, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	if source == nil {
		return nil, errors.New("whisper: source must not be nil")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	r := &Recognizer{
		model:          model,
		source:         source,
		language:       defaultLanguage,
		sampleRate:     defaultSampleRate,
		silenceMs:      defaultSilenceMs,
		maxUtteranceMs: defaultMaxUtteranceMs,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Close releases the whisper model.
func (r *Recognizer) Close() error {
	if r.model != nil {
		return r.model.Close()
	}
	return nil
}

// Capture reads audio from the Source until silence or the utterance budget,
// then transcribes the buffered speech. A capture that never sees speech, or
// whose transcription comes back empty, returns capture.ErrNoSpeech.
func (r *Recognizer) Capture(ctx context.Context) (capture.Result, error) {
	pcm, err := r.collectUtterance(ctx)
	if err != nil {
		return capture.Result{}, err
	}
	if len(pcm) == 0 {
		return capture.Result{}, capture.ErrNoSpeech
	}

	text, err := r.transcribe(pcm)
	if err != nil {
		return capture.Result{}, fmt.Errorf("whisper: %w", err)
	}
	if text == "" {
		return capture.Result{}, capture.ErrNoSpeech
	}
	return capture.Result{Text: text}, nil
}

// collectUtterance buffers chunks from the Source, applying RMS silence
// detection. It returns the buffered speech once the speaker has been silent
// for the configured threshold, the utterance budget is reached, or the
// source is exhausted.
func (r *Recognizer) collectUtterance(ctx context.Context) ([]byte, error) {
	var (
		buffer    []byte
		hadSpeech bool
		silence   int
	)
	bytesPerMs := r.sampleRate * 2 / 1000
	if bytesPerMs <= 0 {
		bytesPerMs = 32
	}
	maxBytes := r.maxUtteranceMs * bytesPerMs

	for {
		if err := ctx.Err(); err != nil {
			return nil, capture.ErrNoSpeech
		}
		chunk, err := r.source.ReadChunk(ctx)
		if errors.Is(err, io.EOF) {
			return buffer, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, capture.ErrNoSpeech
			}
			return nil, fmt.Errorf("whisper: read audio: %w", err)
		}

		chunkMs := len(chunk) / bytesPerMs
		if rms(chunk) < rmsThreshold {
			if !hadSpeech {
				continue
			}
			silence += chunkMs
			buffer = append(buffer, chunk...)
			if silence >= r.silenceMs {
				return buffer, nil
			}
			continue
		}

		hadSpeech = true
		silence = 0
		buffer = append(buffer, chunk...)
		if maxBytes > 0 && len(buffer) >= maxBytes {
			return buffer, nil
		}
	}
}

// transcribe runs whisper.cpp inference on the buffered PCM using a fresh
// context and returns the concatenated segment text.
func (r *Recognizer) transcribe(pcm []byte) (string, error) {
	samples := pcmToFloat32(pcm)

	wctx, err := r.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("create context: %w", err)
	}
	if err := wctx.SetLanguage(r.language); err != nil {
		slog.Warn("whisper: failed to set language, using model default", "language", r.language, "error", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// rms computes the root-mean-square energy of 16-bit LE PCM audio.
func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		s := int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(n))
}

// Compile-time assertion that Recognizer satisfies capture.Recognizer.
var _ capture.Recognizer = (*Recognizer)(nil)
