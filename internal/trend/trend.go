// Package trend classifies the direction of a short score history.
package trend

// Window is the number of newest samples a direction is read from.
const Window = 3

// Direction of the newest Window samples.
type Direction int

const (
	Insufficient Direction = iota
	Rising
	Falling
	Flat
)

// Of reports whether the newest Window samples strictly rise, strictly fall,
// or neither. Fewer than Window samples yield Insufficient.
func Of(history []float64) Direction {
	if len(history) < Window {
		return Insufficient
	}
	w := history[len(history)-Window:]
	rising, falling := true, true
	for i := 1; i < len(w); i++ {
		if w[i] <= w[i-1] {
			rising = false
		}
		if w[i] >= w[i-1] {
			falling = false
		}
	}
	switch {
	case rising:
		return Rising
	case falling:
		return Falling
	default:
		return Flat
	}
}
