package util

import (
	"reflect"
	"testing"
)

func TestExpandRange(t *testing.T) {
	tests := []struct {
		spec    string
		want    []int
		wantErr bool
	}{
		{"", nil, false},
		{"10", []int{10}, false},
		{"10,20", []int{10, 20}, false},
		{"10-12,5", []int{5, 10, 11, 12}, false},
		{"10, 10-11 ,", []int{10, 11}, false},
		{"12-10", nil, true},
		{"a-3", nil, true},
		{"3-b", nil, true},
		{"x", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ExpandRange(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExpandRange(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandRange(%q) = %v, want %v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestExpandVLANRange(t *testing.T) {
	got, err := ExpandVLANRange("100-102,200")
	if err != nil {
		t.Fatalf("ExpandVLANRange() error = %v", err)
	}
	if want := []int{100, 101, 102, 200}; !reflect.DeepEqual(got, want) {
		t.Errorf("ExpandVLANRange() = %v, want %v", got, want)
	}
	if _, err := ExpandVLANRange("4090-4095"); err == nil {
		t.Error("ExpandVLANRange() should reject ids above 4094")
	}
	if _, err := ExpandVLANRange("0"); err == nil {
		t.Error("ExpandVLANRange() should reject id 0")
	}
}

func TestCompactRange(t *testing.T) {
	tests := []struct {
		in   []int
		want string
	}{
		{nil, ""},
		{[]int{5}, "5"},
		{[]int{3, 1, 2, 5, 7, 8, 9, 8}, "1-3,5,7-9"},
	}
	for _, tt := range tests {
		if got := CompactRange(tt.in); got != tt.want {
			t.Errorf("CompactRange(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRangeRoundTrip(t *testing.T) {
	spec := "1-3,10,20-22"
	vals, err := ExpandRange(spec)
	if err != nil {
		t.Fatalf("ExpandRange() error = %v", err)
	}
	if got := CompactRange(vals); got != spec {
		t.Errorf("CompactRange(ExpandRange(%q)) = %q", spec, got)
	}
}
