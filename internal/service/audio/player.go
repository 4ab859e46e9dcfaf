// Package audio plays the alert sound.
package audio

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"SignalPulse/pkg/logger"
)

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// CommandPlayer plays a sound file through an external player such as afplay or paplay.
type CommandPlayer struct {
	command     []string
	defaultFile string
	customFile  string
	run         runFunc
}

// NewCommandPlayer builds a player from the command line prefix; the file path is appended.
func NewCommandPlayer(command []string, defaultFile, customFile string) (*CommandPlayer, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("audio command is required")
	}
	return &CommandPlayer{
		command:     command,
		defaultFile: defaultFile,
		customFile:  customFile,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}, nil
}

// Play plays the custom sound when one is configured and requested, the default one otherwise.
func (p *CommandPlayer) Play(ctx context.Context, hasCustomAudio bool) error {
	file := p.defaultFile
	if hasCustomAudio && p.customFile != "" {
		file = p.customFile
	}
	args := append([]string{}, p.command[1:]...)
	if file != "" {
		args = append(args, file)
	}
	if out, err := p.run(ctx, p.command[0], args...); err != nil {
		return fmt.Errorf("%s: %w: %s", p.command[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// LogPlayer only records that a sound would have been played. Used when audio is disabled.
type LogPlayer struct {
	l *logger.Logger
}

func NewLogPlayer(l *logger.Logger) *LogPlayer {
	if l == nil {
		l = logger.Nop()
	}
	return &LogPlayer{l: l}
}

func (p *LogPlayer) Play(_ context.Context, hasCustomAudio bool) error {
	p.l.Debug("alert sound", logger.Bool("custom", hasCustomAudio))
	return nil
}
