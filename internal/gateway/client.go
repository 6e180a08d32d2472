package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"futures-analytics/internal/logger"
	"futures-analytics/internal/model"
	"futures-analytics/internal/risk"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 4096
	sendBuffer = 256
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	conn.EnableWriteCompression(true)
	return &Client{conn: conn, send: make(chan []byte, sendBuffer), hub: h}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply(Outbound{Type: TypeError, Message: "malformed message"})
			continue
		}
		c.reply(c.handle(msg))
	}
}

func (c *Client) reply(msg Outbound) {
	c.hub.sendTo(c, encode(msg))
}

// handle answers one client request.
func (c *Client) handle(msg Inbound) Outbound {
	switch msg.Type {
	case TypeCalculateRisk:
		return c.handleRisk(msg.Data)
	case TypeGetKlines:
		return c.handleKlines(msg.Data)
	case TypePing:
		return Outbound{Type: TypePong, Data: time.Now().UnixMilli()}
	default:
		return Outbound{Type: TypeError, Message: "unknown message type: " + msg.Type}
	}
}

func (c *Client) handleRisk(data json.RawMessage) Outbound {
	ctx := logger.WithTraceID(context.Background(), logger.GenerateTraceID("ws-risk", time.Now()))
	traceID := logger.TraceID(ctx)

	var form RiskForm
	if err := json.Unmarshal(data, &form); err != nil {
		c.riskOutcome("bad_request")
		return Outbound{Type: TypeError, Message: "invalid risk request: " + err.Error(), TraceID: traceID}
	}

	plan, err := c.hub.session.Risk(form.Request())
	if err != nil {
		c.riskOutcome("rejected")
		zap.L().Info("risk request rejected", append(logger.Fields(ctx), zap.Error(err))...)
		msg := "risk calculation failed"
		if errors.Is(err, risk.ErrInvalidRequest) {
			msg = err.Error()
		}
		return Outbound{Type: TypeError, Message: msg, TraceID: traceID}
	}

	c.riskOutcome("ok")
	zap.L().Info("risk calculated", append(logger.Fields(ctx), zap.Stringer("plan", plan))...)
	return Outbound{Type: TypeRiskCalculation, Data: plan, TraceID: traceID}
}

func (c *Client) riskOutcome(outcome string) {
	if c.hub.OnRisk != nil {
		c.hub.OnRisk(outcome)
	}
}

func (c *Client) handleKlines(data json.RawMessage) Outbound {
	var req KlinesRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return Outbound{Type: TypeError, Message: "invalid get_klines request"}
	}
	p, err := model.ParsePeriod(string(req.Period))
	if err != nil {
		return Outbound{Type: TypeError, Message: err.Error()}
	}
	candles, _ := c.hub.session.Candles(p)
	if candles == nil {
		candles = []model.Candle{}
	}
	return Outbound{Type: TypeKlines, Data: KlinesData{Period: p, Klines: candles}}
}
