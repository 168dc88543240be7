package handler

import (
	"context"
	"log/slog"

	"github.com/dukerupert/hearth/internal/background"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/websocket"
)

type activityRecorder interface {
	Record(ctx context.Context, e model.ActivityEntry) error
}

// Publisher records activity and notifies connected members off the
// request path. Delivery is best effort.
type Publisher struct {
	runner   *background.Runner
	activity activityRecorder
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewPublisher(runner *background.Runner, activity activityRecorder, hub *websocket.Hub, logger *slog.Logger) *Publisher {
	return &Publisher{runner: runner, activity: activity, hub: hub, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, entry model.ActivityEntry, msg websocket.Message) {
	if p == nil {
		return
	}
	p.runner.Go(ctx, "publish_"+entry.Action, func(ctx context.Context) error {
		if p.hub != nil {
			p.hub.Broadcast(msg)
		}
		return p.activity.Record(ctx, entry)
	})
}
