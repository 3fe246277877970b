package util

import (
	"testing"

	"github.com/OCAP2/awacs/pkg/core"
)

func TestTrimQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no quotes", "hello", "hello"},
		{"double quoted", `"hello"`, "hello"},
		{"single quotes only", "'hello'", "'hello'"},
		{"quotes in middle", `he"llo`, `he"llo`},
		{"only quotes", `""`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TrimQuotes(tt.input)
			if result != tt.expected {
				t.Errorf("TrimQuotes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFixEscapeQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no escaped quotes", "hello", "hello"},
		{"single escaped quote", `he""llo`, `he"llo`},
		{"multiple escaped quotes", `a""b""c`, `a"b"c`},
		{"consecutive escaped", `a""""b`, `a""b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FixEscapeQuotes(tt.input)
			if result != tt.expected {
				t.Errorf("FixEscapeQuotes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseSQFStringArray(t *testing.T) {
	tests := []struct {
		name                      string
		input                     string
		vehicle, weapon, magazine string
	}{
		{"full", `["Wipeout","GAU-8","1350Rnd"]`, "Wipeout", "GAU-8", "1350Rnd"},
		{"empty parts", `["","Titan AA",""]`, "", "Titan AA", ""},
		{"not an array", "Titan AA", "", "Titan AA", ""},
		{"two parts", `["a","b"]`, "", `["a","b"]`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, w, m := ParseSQFStringArray(tt.input)
			if v != tt.vehicle || w != tt.weapon || m != tt.magazine {
				t.Errorf("ParseSQFStringArray(%q) = (%q, %q, %q), want (%q, %q, %q)",
					tt.input, v, w, m, tt.vehicle, tt.weapon, tt.magazine)
			}
		})
	}
}

func TestWeaponText(t *testing.T) {
	tests := []struct {
		name     string
		input    *core.WeaponIdentity
		expected string
	}{
		{"nil", nil, "unknown"},
		{"empty", &core.WeaponIdentity{}, "unknown"},
		{"weapon only", &core.WeaponIdentity{Weapon: "Titan AA"}, "Titan AA"},
		{"with magazine", &core.WeaponIdentity{Weapon: "MX", Magazine: "30Rnd"}, "MX [30Rnd]"},
		{"vehicle", &core.WeaponIdentity{Vehicle: "Wipeout", Weapon: "GAU-8", Magazine: "1350Rnd"}, "Wipeout: GAU-8 [1350Rnd]"},
		{"vehicle only", &core.WeaponIdentity{Vehicle: "Wipeout"}, "Wipeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeaponText(tt.input); got != tt.expected {
				t.Errorf("WeaponText(%+v) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
