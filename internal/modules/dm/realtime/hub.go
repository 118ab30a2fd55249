// Package realtime 按战役分房间的 websocket 广播
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"anomali-dm/internal/pkg/log"
	"anomali-dm/internal/pkg/notify"
)

// 帧类型
const (
	FramePlayerMessage = "player-message"
	FrameAIResponse    = "ai-response"
	FrameTurn          = "turn"
	FrameError         = "error"
)

const writeWait = 10 * time.Second

// Frame 服务端下发的帧
type Frame struct {
	Type    string          `json:"type"`
	TurnID  string          `json:"turn_id,omitempty"`
	Text    string          `json:"text,omitempty"`
	HTML    string          `json:"narration_html,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Code    int             `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

// peer 单个连接，写操作串行
type peer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newPeer(conn *websocket.Conn) *peer {
	return &peer{conn: conn}
}

func (p *peer) write(frame Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteJSON(frame)
}

func (p *peer) ping() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Hub 战役房间集合
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*peer]struct{}
	logger log.Logger
}

// NewHub 创建房间集合
func NewHub(logger log.Logger) *Hub {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Hub{rooms: make(map[string]map[*peer]struct{}), logger: logger}
}

func (h *Hub) join(campaignID string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[campaignID]
	if !ok {
		room = make(map[*peer]struct{})
		h.rooms[campaignID] = room
	}
	room[p] = struct{}{}
}

func (h *Hub) leave(campaignID string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[campaignID]
	delete(room, p)
	if len(room) == 0 {
		delete(h.rooms, campaignID)
	}
}

func (h *Hub) peers(campaignID string) []*peer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room := h.rooms[campaignID]
	out := make([]*peer, 0, len(room))
	for p := range room {
		out = append(out, p)
	}
	return out
}

// Connections 当前战役的连接数
func (h *Hub) Connections(campaignID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[campaignID])
}

// Broadcast 发给战役内所有连接，写失败的连接由读循环负责清理
func (h *Hub) Broadcast(campaignID string, frame Frame) int {
	sent := 0
	for _, p := range h.peers(campaignID) {
		if err := p.write(frame); err != nil {
			h.logger.Debug("推送失败", log.String("campaign_id", campaignID), log.Any("error", err))
			continue
		}
		sent++
	}
	return sent
}

// HandleEvent 作为 NATS 订阅回调，把回合事件转发到对应房间
func (h *Hub) HandleEvent(subject string, data []byte) {
	campaignID, ok := notify.CampaignFromSubject(subject)
	if !ok {
		h.logger.Warn("无法识别的事件主题", log.String("subject", subject))
		return
	}
	if !json.Valid(data) {
		h.logger.Warn("回合事件不是合法 JSON", log.String("subject", subject))
		return
	}

	var head struct {
		TurnID string `json:"turn_id"`
	}
	_ = json.Unmarshal(data, &head)

	h.Broadcast(campaignID, Frame{Type: FrameTurn, TurnID: head.TurnID, Payload: json.RawMessage(data)})
}

// Publish 没有 NATS 时直接在本进程内广播，实现 notify.Publisher
func (h *Hub) Publish(_ context.Context, subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	h.HandleEvent(subject, data)
	return nil
}
