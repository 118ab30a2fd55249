package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"anomali-dm/internal/modules/dm/service"
	"anomali-dm/internal/pkg/log"
	"anomali-dm/internal/pkg/validation"
	"anomali-dm/internal/pkg/xerrors"
)

const (
	maxFrameBytes      = 16 << 10
	maxFramesPerSecond = 5
	turnQueueSize      = 4
	defaultPongWait    = 60 * time.Second
)

// TurnTaker 执行回合
type TurnTaker interface {
	TakeTurn(ctx context.Context, req service.TurnRequest) (*service.TurnResult, error)
}

// inbound 客户端上行帧
type inbound struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	PlayerID string `json:"player_id"`
	TurnID   string `json:"turn_id"`
}

// Handler 战役 websocket 入口
type Handler struct {
	hub      *Hub
	turns    TurnTaker
	upgrader websocket.Upgrader
	logger   log.Logger

	// pingPeriod 必须小于 pongWait
	pongWait   time.Duration
	pingPeriod time.Duration
}

// NewHandler 创建 websocket 处理器，allowOrigin 为 nil 时接受所有来源
func NewHandler(hub *Hub, turns TurnTaker, logger log.Logger, allowOrigin func(r *http.Request) bool) *Handler {
	if logger == nil {
		logger = log.GetLogger()
	}
	if allowOrigin == nil {
		allowOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		hub:   hub,
		turns: turns,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     allowOrigin,
		},
		logger:     logger,
		pongWait:   defaultPongWait,
		pingPeriod: defaultPongWait * 9 / 10,
	}
}

// Serve 升级连接并进入读循环
// @Summary 战役实时通道
// @Description websocket。上行 {"type":"player-message","content","player_id","turn_id"}，下行 ai-response / turn / error
// @Tags DM
// @Param campaign_id path string true "战役ID"
// @Router /dm/campaigns/{campaign_id}/ws [get]
func (h *Handler) Serve(c echo.Context) error {
	campaignID := c.Param("campaign_id")
	if !validation.IsValidID(campaignID) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid campaign_id")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade 已经写回错误响应
		h.logger.WarnContext(c.Request().Context(), "websocket 升级失败", log.Any("error", err))
		return nil
	}

	p := newPeer(conn)
	h.hub.join(campaignID, p)

	ctx := c.Request().Context()
	done := make(chan struct{})
	queue := make(chan inbound, turnQueueSize)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.turnWorker(ctx, campaignID, p, queue, done)
	}()
	defer func() {
		close(done)
		close(queue)
		// 进行中的回合照常完成
		wg.Wait()
		h.hub.leave(campaignID, p)
		_ = conn.Close()
	}()

	go h.keepAlive(p, done)
	h.readLoop(ctx, p, queue)
	return nil
}

func (h *Handler) keepAlive(p *peer, done <-chan struct{}) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := p.ping(); err != nil {
				return
			}
		}
	}
}

// readLoop 只负责读帧、限流和入队，回合在 turnWorker 中执行，读循环始终能处理 pong
func (h *Handler) readLoop(ctx context.Context, p *peer, queue chan<- inbound) {
	conn := p.conn
	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	windowStart := time.Now()
	framesInWindow := 0

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.DebugContext(ctx, "websocket 读取结束", log.Any("error", err))
			}
			return
		}

		// 解码前计数，坏帧同样占用配额
		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = p.write(errorFrame("", xerrors.FromCode(xerrors.CodeRateLimitExceeded)))
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = p.write(errorFrame("", xerrors.NewValidationError("frame", "invalid frame payload")))
			continue
		}

		switch msg.Type {
		case FramePlayerMessage:
			if strings.TrimSpace(msg.Content) == "" {
				_ = p.write(errorFrame(msg.TurnID, xerrors.NewEmptyInputError()))
				continue
			}
			select {
			case queue <- msg:
			default:
				_ = p.write(errorFrame(msg.TurnID, xerrors.FromCode(xerrors.CodeRateLimitExceeded).
					WithMetadata("reason", "turn queue full")))
			}
		default:
			_ = p.write(errorFrame(msg.TurnID, xerrors.NewValidationError("type", "unsupported frame type")))
		}
	}
}

// turnWorker 按到达顺序执行同一连接的回合
func (h *Handler) turnWorker(ctx context.Context, campaignID string, p *peer, queue <-chan inbound, done <-chan struct{}) {
	for msg := range queue {
		select {
		case <-done:
			// 连接已断开，排队中的回合不再执行
			continue
		default:
		}
		h.handlePlayerMessage(ctx, campaignID, p, msg)
	}
}

func (h *Handler) handlePlayerMessage(ctx context.Context, campaignID string, p *peer, msg inbound) {
	result, err := h.turns.TakeTurn(ctx, service.TurnRequest{
		CampaignID: campaignID,
		UserInput:  msg.Content,
		TurnID:     msg.TurnID,
		PlayerID:   msg.PlayerID,
	})
	if err != nil {
		_ = p.write(errorFrame(msg.TurnID, xerrors.Wrap(err, xerrors.CodeInternalError, "回合失败")))
		return
	}

	if err := p.write(Frame{
		Type:   FrameAIResponse,
		TurnID: result.TurnID,
		Text:   result.Narration,
		HTML:   result.NarrationHTML,
	}); err != nil {
		h.logger.DebugContext(ctx, "回写 ai-response 失败", log.Any("error", err))
	}
}

func errorFrame(turnID string, appErr *xerrors.AppError) Frame {
	return Frame{
		Type:    FrameError,
		TurnID:  turnID,
		Code:    appErr.Code.ToInt(),
		Message: appErr.Message,
	}
}
