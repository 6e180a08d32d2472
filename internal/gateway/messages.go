package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"futures-analytics/internal/model"
	"futures-analytics/internal/pipeline"
	"futures-analytics/internal/risk"
)

// Message types on the wire.
const (
	TypeInitial         = "initial"
	TypeTick            = "tick"
	TypeKlineUpdate     = "kline_update"
	TypeKlines          = "klines"
	TypeRiskCalculation = "risk_calculation"
	TypeError           = "error"
	TypePong            = "pong"

	TypeCalculateRisk = "calculate_risk"
	TypeGetKlines     = "get_klines"
	TypePing          = "ping"
)

// Outbound is every server-to-client message.
type Outbound struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	TraceID string `json:"traceId,omitempty"`
}

// Inbound is every client-to-server message.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// InitialData is sent once to every new client.
type InitialData struct {
	Symbol   string                          `json:"symbol"`
	Klines   map[model.Period][]model.Candle `json:"klines"`
	Analysis *pipeline.Bundle                `json:"analysis,omitempty"`
}

// KlinesRequest is the get_klines payload.
type KlinesRequest struct {
	Period model.Period `json:"period"`
}

// KlinesData answers get_klines.
type KlinesData struct {
	Period model.Period   `json:"period"`
	Klines []model.Candle `json:"klines"`
}

func encode(msg Outbound) []byte {
	b, _ := json.Marshal(msg)
	return b
}

// Number decodes a JSON number or a numeric string. Form-driven clients
// send the latter.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("not a number: %q", s)
		}
		*n = Number(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = Number(v)
	return nil
}

// RiskForm is the risk query as clients send it.
type RiskForm struct {
	EntryPrice Number          `json:"entryPrice"`
	Direction  risk.Direction  `json:"direction"`
	Equity     Number          `json:"equity"`
	Balance    Number          `json:"balance"`
	Margin     Number          `json:"margin"`
	RiskLevel  risk.Preference `json:"riskLevel"`
	ATR        *Number         `json:"atr,omitempty"`
}

// Request converts the form into a risk.Request.
func (f RiskForm) Request() risk.Request {
	req := risk.Request{
		EntryPrice: float64(f.EntryPrice),
		Direction:  f.Direction,
		Equity:     float64(f.Equity),
		Balance:    float64(f.Balance),
		Margin:     float64(f.Margin),
		RiskLevel:  f.RiskLevel,
	}
	if f.ATR != nil {
		atr := float64(*f.ATR)
		req.ATR = &atr
	}
	return req
}
