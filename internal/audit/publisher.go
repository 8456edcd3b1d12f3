package audit

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

// NewPublisher は監査イベント用の publisher を作成します。
// client が nil の場合はプロセス内の gochannel を使います。
func NewPublisher(client redis.UniversalClient) (message.Publisher, error) {
	logger := watermill.NopLogger{}
	if client == nil {
		return gochannel.NewGoChannel(gochannel.Config{}, logger), nil
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis stream publisher: %w", err)
	}
	return publisher, nil
}
