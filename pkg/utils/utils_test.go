package utils

import (
	"testing"
	"time"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{999.5, "999.50"},
		{1234.567, "1,234.57"},
		{12345678.9, "1,23,45,678.90"},
		{-150000, "-1,50,000.00"},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.in); got != tt.want {
			t.Errorf("FormatPrice(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	if got := FormatPercent(2.5); got != "+2.50%" {
		t.Errorf("got %q", got)
	}
	if got := FormatPercent(-1); got != "-1.00%" {
		t.Errorf("got %q", got)
	}
	if got := FormatRatio(0.876); got != "88%" {
		t.Errorf("got %q", got)
	}
}

func TestLastSessionClose(t *testing.T) {
	ist := IndiaLocation
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"after close", time.Date(2024, 3, 6, 16, 0, 0, 0, ist), time.Date(2024, 3, 6, 15, 30, 0, 0, ist)},
		{"during session", time.Date(2024, 3, 6, 11, 0, 0, 0, ist), time.Date(2024, 3, 5, 15, 30, 0, 0, ist)},
		{"monday morning", time.Date(2024, 3, 4, 10, 0, 0, 0, ist), time.Date(2024, 3, 1, 15, 30, 0, 0, ist)},
		{"sunday", time.Date(2024, 3, 3, 12, 0, 0, 0, ist), time.Date(2024, 3, 1, 15, 30, 0, 0, ist)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LastSessionClose(tt.now); !got.Equal(tt.want) {
				t.Errorf("LastSessionClose() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsSessionOpen(t *testing.T) {
	ist := IndiaLocation
	if !IsSessionOpen(time.Date(2024, 3, 6, 9, 15, 0, 0, ist)) {
		t.Error("9:15 on a Wednesday should be open")
	}
	if IsSessionOpen(time.Date(2024, 3, 6, 15, 30, 0, 0, ist)) {
		t.Error("15:30 is the close")
	}
	if IsSessionOpen(time.Date(2024, 3, 9, 11, 0, 0, 0, ist)) {
		t.Error("Saturday should be closed")
	}
}
