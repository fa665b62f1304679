package model

import "testing"

func TestListOptions_Clamp(t *testing.T) {
	tests := []struct {
		name       string
		input      ListOptions
		wantLimit  int
		wantOffset int
	}{
		{"zero value", ListOptions{}, 20, 0},
		{"limit below one", ListOptions{Limit: -5}, 20, 0},
		{"limit above cap", ListOptions{Limit: 200}, 100, 0},
		{"limit at cap", ListOptions{Limit: 100}, 100, 0},
		{"offset below zero", ListOptions{Limit: 10, Offset: -3}, 10, 0},
		{"in range", ListOptions{Limit: 50, Offset: 10}, 50, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.input.Clamp()
			if tt.input.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", tt.input.Limit, tt.wantLimit)
			}
			if tt.input.Offset != tt.wantOffset {
				t.Errorf("Offset = %d, want %d", tt.input.Offset, tt.wantOffset)
			}
		})
	}
}

func TestDefaultListOptions(t *testing.T) {
	if opts := DefaultListOptions(); opts != (ListOptions{Limit: 20}) {
		t.Errorf("DefaultListOptions() = %+v, want limit 20 at offset 0", opts)
	}
}
