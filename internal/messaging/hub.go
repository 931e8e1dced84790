package messaging

import (
	"log/slog"
	"sync"

	"github.com/hitoshi/talktome/internal/metrics"
	"github.com/hitoshi/talktome/internal/model"
)

// subscriberBufferSize は購読者ごとのイベントバッファ数。
// 消費が追いつかない購読者はイベントを取りこぼす（送信側はブロックしない）。
const subscriberBufferSize = 16

// Event はリアルタイム配信されるイベント。
type Event struct {
	Type    string         `json:"type"`
	Message *model.Message `json:"message,omitempty"`
}

// EventNewMessage は新着メッセージイベントの種別。
const EventNewMessage = "new-message"

// Subscriber はあるユーザーの1接続分のイベント購読。
// Cはハブ側からクローズされないため、受信側はUnsubscribe後に
// チャネルをドレインする必要はない。
type Subscriber struct {
	UserID string
	C      chan Event
}

// Hub はユーザーIDごとの購読者集合を管理し、イベントをファンアウトする。
// 同一ユーザーの複数接続（複数タブ等）はそれぞれ独立した購読者になる。
type Hub struct {
	mu        sync.RWMutex
	subs      map[string]map[*Subscriber]struct{}
	collector metrics.MetricsCollector
}

// NewHub はHubを生成する。collectorはnil可。
func NewHub(collector metrics.MetricsCollector) *Hub {
	return &Hub{
		subs:      make(map[string]map[*Subscriber]struct{}),
		collector: collector,
	}
}

// Subscribe は指定ユーザーの購読を開始する。
func (h *Hub) Subscribe(userID string) *Subscriber {
	sub := &Subscriber{
		UserID: userID,
		C:      make(chan Event, subscriberBufferSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscriber]struct{})
	}
	h.subs[userID][sub] = struct{}{}

	return sub
}

// Unsubscribe は購読を解除する。解除済みの購読者に対しては何もしない。
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[sub.UserID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.UserID)
	}
}

// Publish は指定ユーザーの全購読者へイベントを配信する。
// 購読者がいない場合は何もしない。バッファが満杯の購読者へは
// ブロックせずイベントを破棄する。送信操作の成否には影響しない。
func (h *Hub) Publish(userID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[userID] {
		select {
		case sub.C <- event:
			if h.collector != nil {
				h.collector.RecordRealtimePublished()
			}
		default:
			if h.collector != nil {
				h.collector.RecordRealtimeDropped()
			}
			slog.Warn("realtime event dropped: subscriber buffer full",
				slog.String("user_id", userID),
				slog.String("event_type", event.Type),
			)
		}
	}
}

// SubscriberCount は指定ユーザーの現在の購読者数を返す。
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
