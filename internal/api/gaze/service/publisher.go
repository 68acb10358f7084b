package gazeService

import (
	"GazeGate/internal/api/gaze"
	"context"
	"errors"
)

type Publisher interface {
	Publish(ctx context.Context, status gaze.SessionStatus) error
}

type channelPublisher struct {
	out chan<- gaze.SessionStatus
}

// NewChannelPublisher forwards statuses to out, giving up when ctx is done.
func NewChannelPublisher(out chan<- gaze.SessionStatus) Publisher {
	return &channelPublisher{out: out}
}

func (p *channelPublisher) Publish(ctx context.Context, status gaze.SessionStatus) error {
	select {
	case p.out <- status:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type multiPublisher []Publisher

func NewMultiPublisher(publishers ...Publisher) Publisher {
	return multiPublisher(publishers)
}

func (m multiPublisher) Publish(ctx context.Context, status gaze.SessionStatus) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, status); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
