package trend

import "testing"

func TestOf(t *testing.T) {
	tests := []struct {
		name    string
		history []float64
		want    Direction
	}{
		{"empty", nil, Insufficient},
		{"two samples", []float64{40, 60}, Insufficient},
		{"rising", []float64{10, 20, 30}, Rising},
		{"falling", []float64{30, 20, 10}, Falling},
		{"plateau is flat", []float64{20, 30, 30}, Flat},
		{"zigzag", []float64{20, 30, 25}, Flat},
		{"only newest three count", []float64{90, 10, 20, 30}, Rising},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Of(tt.history); got != tt.want {
				t.Errorf("Of(%v) = %v, want %v", tt.history, got, tt.want)
			}
		})
	}
}
