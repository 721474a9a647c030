package core

import "context"

// BotService is any service that can answer a study-assistant prompt.
// Implementations are expected to degrade to a locally generated reply
// rather than surface upstream API failures to the caller.
type BotService interface {
	Reply(ctx context.Context, prompt string) (string, error)
}
