package sentiment

import "futures-analytics/internal/model"

// volumeScore compares the mean volume of the last 10 bars with the 10 before.
func volumeScore(candles []model.Candle) int {
	recent := model.Tail(candles, 10)
	earlier := model.Tail(candles[:len(candles)-len(recent)], 10)

	recentAvg := meanVolume(recent)
	earlierAvg := meanVolume(earlier)
	change := 0.0
	if earlierAvg != 0 {
		change = (recentAvg - earlierAvg) / earlierAvg * 100
	}

	switch {
	case change > 50:
		return 75
	case change > 20:
		return 65
	case change > 0:
		return 55
	case change > -20:
		return 45
	case change > -50:
		return 35
	default:
		return 25
	}
}

func meanVolume(candles []model.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	var sum int64
	for _, c := range candles {
		sum += c.Volume
	}
	return float64(sum) / float64(len(candles))
}

// volatilityScore uses the mean bar range as a percent of the bar midpoint.
func volatilityScore(candles []model.Candle) int {
	recent := model.Tail(candles, 10)
	var sum float64
	for _, c := range recent {
		mid := (c.High + c.Low) / 2
		if mid != 0 {
			sum += (c.High - c.Low) / mid * 100
		}
	}
	avg := sum / float64(len(recent))

	switch {
	case avg > 2.0:
		return 80
	case avg > 1.5:
		return 70
	case avg > 1.0:
		return 60
	case avg > 0.5:
		return 50
	case avg > 0.3:
		return 40
	default:
		return 30
	}
}

// positionScore is neutral unless the tick carries open interest; then it
// scores the price drift against the mean of the last 5 closes.
func positionScore(candles []model.Candle, tick *model.Tick) int {
	if tick == nil || !tick.HasOpenInterest() {
		return 50
	}
	recent := model.Tail(candles, 5)
	var sum float64
	for _, c := range recent {
		sum += c.Close
	}
	avg := sum / float64(len(recent))
	if avg == 0 {
		return 50
	}
	drift := (tick.Price - avg) / avg * 100

	switch {
	case drift > 1:
		return 70
	case drift > 0:
		return 60
	case drift > -1:
		return 40
	default:
		return 30
	}
}

// momentumScore measures the streak ending at the newest bar within the
// last 10. A doji or a reversal ends the streak.
func momentumScore(candles []model.Candle) int {
	recent := model.Tail(candles, 10)
	up, down := 0, 0
	for i := len(recent) - 1; i >= 0; i-- {
		c := &recent[i]
		if c.Up() && down == 0 {
			up++
		} else if c.Down() && up == 0 {
			down++
		} else {
			break
		}
	}

	switch {
	case up >= 5:
		return 80
	case up >= 3:
		return 70
	case up >= 2:
		return 60
	case down >= 5:
		return 20
	case down >= 3:
		return 30
	case down >= 2:
		return 40
	default:
		return 50
	}
}

// breadthScore is the share of up bars among directional bars in the last 20.
func breadthScore(candles []model.Candle) int {
	up, down := 0, 0
	for _, c := range model.Tail(candles, 20) {
		switch {
		case c.Up():
			up++
		case c.Down():
			down++
		}
	}
	if up+down == 0 {
		return 50
	}
	ratio := float64(up) / float64(up+down)

	switch {
	case ratio > 0.7:
		return 75
	case ratio > 0.6:
		return 65
	case ratio > 0.5:
		return 55
	case ratio > 0.4:
		return 45
	case ratio > 0.3:
		return 35
	default:
		return 25
	}
}

func volumeDescription(score int) string {
	switch {
	case score > 65:
		return "Volume expanding sharply"
	case score > 55:
		return "Volume expanding moderately"
	case score > 45:
		return "Volume steady"
	case score > 35:
		return "Volume contracting moderately"
	default:
		return "Volume contracting sharply"
	}
}

func volatilityDescription(score int) string {
	switch {
	case score > 70:
		return "Violent swings"
	case score > 60:
		return "Elevated volatility"
	case score > 50:
		return "Normal volatility"
	case score > 40:
		return "Low volatility"
	default:
		return "Very low volatility"
	}
}

func positionDescription(score int) string {
	switch {
	case score == 50:
		return "No open interest data"
	case score > 60:
		return "Longs in control"
	case score > 50:
		return "Longs slightly ahead"
	case score > 40:
		return "Shorts slightly ahead"
	default:
		return "Shorts in control"
	}
}

func momentumDescription(score int) string {
	switch {
	case score >= 80:
		return "Strong upward momentum"
	case score > 50:
		return "Moderate upward momentum"
	case score == 50:
		return "Neutral momentum"
	case score > 20:
		return "Moderate downward momentum"
	default:
		return "Strong downward momentum"
	}
}

func breadthDescription(score int) string {
	switch {
	case score > 65:
		return "Mostly up bars"
	case score > 55:
		return "Slightly more up bars"
	case score > 45:
		return "Up and down bars balanced"
	case score > 35:
		return "Slightly more down bars"
	default:
		return "Mostly down bars"
	}
}
