package stt

import (
	"context"
	"errors"
)

// ErrNoSpeech is returned when the audio held nothing the recogniser could understand.
var ErrNoSpeech = errors.New("stt: could not understand audio")

type Provider interface {
	Transcribe(ctx context.Context, audio []byte, language string) (text string, confidence float64, err error)
	Close() error
}
