package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// Player plays one audio chunk and returns when playback has finished.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// PlayerFunc adapts a function to Player.
type PlayerFunc func(ctx context.Context, audio []byte) error

func (f PlayerFunc) Play(ctx context.Context, audio []byte) error { return f(ctx, audio) }

// DiscardPlayer drops audio. Used when no output device is available.
type DiscardPlayer struct{}

func (DiscardPlayer) Play(context.Context, []byte) error { return nil }

// ExecPlayer pipes each chunk into an ffplay-compatible command and waits for
// it to exit.
type ExecPlayer struct {
	Command string
	Args    []string
}

func NewExecPlayer() (*ExecPlayer, error) {
	if _, err := exec.LookPath("ffplay"); err != nil {
		return nil, errors.New("ffplay is required for audio playback (install ffmpeg/ffplay and ensure it is in PATH)")
	}
	return &ExecPlayer{
		Command: "ffplay",
		Args:    []string{"-nodisp", "-autoexit", "-hide_banner", "-loglevel", "error", "-i", "pipe:0"},
	}, nil
}

func (p *ExecPlayer) Play(ctx context.Context, audio []byte) error {
	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	cmd.Stdin = bytes.NewReader(audio)
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", p.Command, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}
