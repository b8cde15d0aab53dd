package gateway

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogGateway is a dry-run gateway: it logs every message and reports success
// with a synthetic message id.
type LogGateway struct {
	logger *zap.Logger
}

func NewLogGateway(logger *zap.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

func (g *LogGateway) Send(ctx context.Context, msg *Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := "dry-run/" + uuid.NewString()
	g.logger.Info("dry-run push",
		zap.String("message_id", id),
		zap.String("title", msg.Title),
		zap.String("type", msg.Data["type"]),
		zap.String("channel_id", msg.Android.ChannelID),
	)
	return id, nil
}

func (g *LogGateway) SendMulticast(ctx context.Context, msg *MulticastMessage) (*BatchResponse, error) {
	return fanOut(ctx, msg, 1, g.Send)
}

var _ Gateway = (*LogGateway)(nil)
