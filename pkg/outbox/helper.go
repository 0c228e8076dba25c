package outbox

import (
	"encoding/json"
	"fmt"
)

// NewEvent 将 payload 编码为待发送事件
func NewEvent(aggregateType, aggregateID, routingKey string, payload any) (*Event, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", routingKey, err)
	}

	return &Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       payloadJSON,
		Status:        StatusPending,
	}, nil
}

// envelopeFields 是所有事件 payload 共有的字段
type envelopeFields struct {
	EventID string `json:"event_id"`
	TraceID string `json:"trace_id"`
}

// headerFields 从 payload 中提取 event_id 与 trace_id（如果存在）
func headerFields(payload json.RawMessage) envelopeFields {
	var f envelopeFields
	_ = json.Unmarshal(payload, &f)
	return f
}
