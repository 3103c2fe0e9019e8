package firebase

import (
	"context"

	"firebase.google.com/go/v4/messaging"
	"github.com/pkg/errors"
)

// FCM accepts at most this many tokens per multicast.
const maxMulticastTokens = 500

// MulticastClient is the part of *messaging.Client the Pusher uses.
type MulticastClient interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Pusher sends notification pushes through Firebase Cloud Messaging.
type Pusher struct {
	client MulticastClient
}

func NewPusher(client MulticastClient) *Pusher {
	return &Pusher{client: client}
}

// Send pushes one message to every token. Tokens FCM reports as unregistered
// are returned so the caller can forget them.
func (p *Pusher) Send(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]string, error) {
	var invalid []string
	for start := 0; start < len(tokens); start += maxMulticastTokens {
		end := start + maxMulticastTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]

		resp, err := p.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens:       batch,
			Notification: &messaging.Notification{Title: title, Body: body},
			Data:         data,
		})
		if err != nil {
			return invalid, errors.Wrap(err, "unable to send multicast")
		}
		for i, r := range resp.Responses {
			if r != nil && !r.Success && messaging.IsUnregistered(r.Error) {
				invalid = append(invalid, batch[i])
			}
		}
	}
	return invalid, nil
}
