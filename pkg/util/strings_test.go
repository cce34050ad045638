package util

import (
	"reflect"
	"testing"
)

func TestSplitCommaSeparated(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"core", []string{"core"}},
		{"core, uplink ,mgmt", []string{"core", "uplink", "mgmt"}},
		{"a,,b,", []string{"a", "b"}},
	}
	for _, tt := range tests {
		got := SplitCommaSeparated(tt.input)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitCommaSeparated(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestToStringList(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  []string
	}{
		{"nil", nil, nil},
		{"bare string", "y", []string{"y"}},
		{"string with comma is not split", "a,b", []string{"a,b"}},
		{"string slice", []string{"x", "y"}, []string{"x", "y"}},
		{"interface slice", []interface{}{"x", 3, nil}, []string{"x", "3"}},
		{"scalar", 42, []string{"42"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToStringList(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ToStringList() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToStringListCopies(t *testing.T) {
	src := []string{"x"}
	got := ToStringList(src)
	got[0] = "changed"
	if src[0] != "x" {
		t.Error("ToStringList() must not alias its input")
	}
}
