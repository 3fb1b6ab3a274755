package service

import (
	"encoding/json"
	"log"

	"github.com/google/uuid"
)

// Relay 对外消息投递接口，由 WebSocket Hub 实现
// Send 返回 false 表示对端不可达（本地无连接且无在线标记）
type Relay interface {
	Send(userID uuid.UUID, payload []byte) bool
	NotifyTyping(userID uuid.UUID)
}

// pushEvent 按统一信封 {type, data} 投递一条事件
func pushEvent(relay Relay, userID uuid.UUID, eventType string, data interface{}) bool {
	if relay == nil {
		return false
	}
	payload, err := json.Marshal(map[string]interface{}{
		"type": eventType,
		"data": data,
	})
	if err != nil {
		log.Printf("[ERROR] Failed to marshal %s event: %v", eventType, err)
		return false
	}
	return relay.Send(userID, payload)
}
