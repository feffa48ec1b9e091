package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/pusher/pusher-http-go/v5"

	"slackclone/internal/config"
)

// PusherTrigger is the part of the Pusher client the broadcaster uses.
type PusherTrigger interface {
	Trigger(channel string, eventName string, data interface{}) error
}

type PusherBroadcaster struct {
	client PusherTrigger
}

func NewPusherClient(cfg config.PusherConfig) *pusher.Client {
	return &pusher.Client{
		AppID:      cfg.AppID,
		Key:        cfg.Key,
		Secret:     cfg.Secret,
		Cluster:    cfg.Cluster,
		Host:       cfg.Host,
		Secure:     cfg.Secure,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func NewPusherBroadcaster(client PusherTrigger) *PusherBroadcaster {
	return &PusherBroadcaster{client: client}
}

func (p *PusherBroadcaster) Name() string {
	return "pusher"
}

// Send triggers ev on the Pusher channel named after its topic. The payload
// is passed through as already-encoded JSON.
func (p *PusherBroadcaster) Send(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.client.Trigger(ev.Topic, ev.Event, []byte(ev.Data))
}
