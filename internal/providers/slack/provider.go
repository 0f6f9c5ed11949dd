package slack

import "context"

type Provider interface {
	PostMessage(ctx context.Context, channel string, message string) error
}

// NoOpProvider is used when no webhook URL is configured.
type NoOpProvider struct{}

func (p *NoOpProvider) PostMessage(ctx context.Context, channel string, message string) error {
	return nil
}
