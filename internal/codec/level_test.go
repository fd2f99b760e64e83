package codec

import (
	"math"
	"testing"
)

func TestLightLevelToLux(t *testing.T) {
	tests := []struct {
		name  string
		level int
		want  float64
	}{
		{"minimum level", 1, 1},
		{"maximum level", 20, 6001},
		{"level 10", 10, 1 + 6000.0/19*9},
		{"level 0 saturates", 0, 6001},
		{"level 21 saturates", 21, 6001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LightLevelToLux(tt.level, DefaultMinLux, DefaultMaxLux)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("LightLevelToLux(%d) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}

	// 1 + 6000/19*9
	if got := LightLevelToLux(10, 1, 6001); math.Abs(got-2843.1) > 0.1 {
		t.Errorf("LightLevelToLux(10) = %v, want ~2843.1", got)
	}
}

func TestClampPercent(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-5, 0},
		{0, 0},
		{55, 55},
		{100, 100},
		{130, 100},
	}
	for _, tt := range tests {
		if got := ClampPercent(tt.in); got != tt.want {
			t.Errorf("ClampPercent(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRoundToStep(t *testing.T) {
	tests := []struct {
		v, step, want int
	}{
		{37, 1, 37},
		{37, 0, 37},
		{37, 5, 35},
		{38, 5, 40},
		{99, 10, 100},
	}
	for _, tt := range tests {
		if got := RoundToStep(tt.v, tt.step); got != tt.want {
			t.Errorf("RoundToStep(%d, %d) = %d, want %d", tt.v, tt.step, got, tt.want)
		}
	}
}
