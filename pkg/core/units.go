// pkg/core/units.go
package core

import (
	"fmt"
	"strings"
)

// UnitSystem selects how report distances and heights are expressed.
type UnitSystem uint8

const (
	Metric UnitSystem = iota
	Imperial
)

func (u UnitSystem) String() string {
	if u == Imperial {
		return "imperial"
	}
	return "metric"
}

// ParseUnitSystem accepts "metric" or "imperial", case-insensitively.
func ParseUnitSystem(s string) (UnitSystem, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "metric":
		return Metric, nil
	case "imperial":
		return Imperial, nil
	}
	return Metric, fmt.Errorf("unknown unit system %q", s)
}
