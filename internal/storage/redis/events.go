package redis

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"datavault/backend/internal/domain"
)

// DeliveryChannel 投递事件频道，多实例部署时用于同步实时推送
const DeliveryChannel = "datavault:deliveries"

// PublishDelivery 发布投递事件
func (c *Client) PublishDelivery(ctx context.Context, event domain.DeliveryEvent) error {
	data, err := json.Marshal(wireEvent{AccountID: event.AccountID, Event: event})
	if err != nil {
		return err
	}
	return c.rdb.Publish(ctx, DeliveryChannel, data).Err()
}

// wireEvent DeliveryEvent 的 AccountID 不参与 JSON 序列化，跨实例传递时单独携带
type wireEvent struct {
	AccountID string               `json:"account_id"`
	Event     domain.DeliveryEvent `json:"event"`
}

// SubscribeDeliveries 订阅投递事件并逐个交给 handler，ctx 取消后返回
func (c *Client) SubscribeDeliveries(ctx context.Context, handler func(domain.DeliveryEvent)) error {
	sub := c.rdb.Subscribe(ctx, DeliveryChannel)
	defer sub.Close()

	// 等待订阅确认，避免丢失订阅建立前发布的消息
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var wire wireEvent
			if err := json.Unmarshal([]byte(msg.Payload), &wire); err != nil {
				c.log.Warn("invalid delivery event payload", zap.Error(err))
				continue
			}
			wire.Event.AccountID = wire.AccountID
			handler(wire.Event)
		}
	}
}
