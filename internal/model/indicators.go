package model

import "encoding/json"

// MACD holds the latest DIF/DEA/histogram triple.
// SignalReady is false until nine DIF points exist; DEA and Histogram are zero then.
type MACD struct {
	DIF         float64 `json:"dif"`
	DEA         float64 `json:"dea"`
	Histogram   float64 `json:"macd"`
	SignalReady bool    `json:"signalReady"`
}

// KDJ holds the stochastic K, D and J lines. J is not bounded to [0,100].
type KDJ struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
	J float64 `json:"j"`
}

// BOLL holds the Bollinger bands.
type BOLL struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// IndicatorSet is the full indicator bundle for one candle sequence.
// It is recomputed from scratch on every update and never mutated afterwards.
type IndicatorSet struct {
	MA5   float64  `json:"ma5"`
	MA10  float64  `json:"ma10"`
	MA20  float64  `json:"ma20"`
	MA60  *float64 `json:"ma60"` // nil below 60 candles
	EMA12 float64  `json:"ema12"`
	EMA26 float64  `json:"ema26"`
	MACD  MACD     `json:"macd"`
	RSI   float64  `json:"rsi"`
	KDJ   KDJ      `json:"kdj"`
	BOLL  BOLL     `json:"boll"`
	ATR   float64  `json:"atr"`
}

// JSON returns the JSON-encoded indicator set.
func (s *IndicatorSet) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
