package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"SignalPulse/internal/domain/models"
)

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// DesktopDispatcher shows an OS notification through osascript (macOS) or notify-send (Linux).
type DesktopDispatcher struct {
	command string
	title   string
	run     runFunc
}

func NewDesktopDispatcher(command, title string) *DesktopDispatcher {
	return &DesktopDispatcher{command: command, title: title, run: execRun}
}

func (d *DesktopDispatcher) Dispatch(ctx context.Context, sig models.Signal) error {
	name, args := d.commandLine(Body(sig))
	if out, err := d.run(ctx, name, args...); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (d *DesktopDispatcher) commandLine(body string) (string, []string) {
	if d.command == "notify-send" {
		return "notify-send", []string{"--urgency=critical", d.title, body}
	}
	script := fmt.Sprintf(
		`display notification "%s" with title "%s" sound name "default"`,
		escapeAppleScript(body), escapeAppleScript(d.title),
	)
	return "osascript", []string{"-e", script}
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
