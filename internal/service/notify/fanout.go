package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"SignalPulse/internal/domain/models"
	domsvc "SignalPulse/internal/domain/service"
)

// Named pairs a dispatcher with the channel name used in errors.
type Named struct {
	Name       string
	Dispatcher domsvc.Dispatcher
}

// FanOut delivers to every channel concurrently. A failing channel never
// prevents delivery on the others; failures are joined into one error.
type FanOut struct {
	channels []Named
}

func NewFanOut(channels ...Named) *FanOut {
	return &FanOut{channels: channels}
}

func (f *FanOut) Dispatch(ctx context.Context, sig models.Signal) error {
	errs := make([]error, len(f.channels))
	var wg sync.WaitGroup
	for i, ch := range f.channels {
		wg.Add(1)
		go func(i int, ch Named) {
			defer wg.Done()
			if err := ch.Dispatcher.Dispatch(ctx, sig); err != nil {
				errs[i] = fmt.Errorf("%s: %w", ch.Name, err)
			}
		}(i, ch)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Channels lists the configured channel names.
func (f *FanOut) Channels() []string {
	out := make([]string, 0, len(f.channels))
	for _, ch := range f.channels {
		out = append(out, ch.Name)
	}
	return out
}
