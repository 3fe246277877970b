// pkg/core/side.go
package core

import (
	"fmt"
	"strings"
)

// Side is the faction an entity belongs to.
type Side uint8

const (
	SideUnknown Side = iota
	SideWest
	SideEast
	SideIndependent
	SideCivilian
)

var sideNames = [...]string{
	SideUnknown:     "UNKNOWN",
	SideWest:        "WEST",
	SideEast:        "EAST",
	SideIndependent: "GUER",
	SideCivilian:    "CIV",
}

func (s Side) String() string {
	if int(s) < len(sideNames) {
		return sideNames[s]
	}
	return fmt.Sprintf("Side(%d)", uint8(s))
}

// ParseSide accepts the host's side names and their common aliases.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WEST", "BLUFOR":
		return SideWest, nil
	case "EAST", "OPFOR":
		return SideEast, nil
	case "GUER", "INDEPENDENT", "RESISTANCE":
		return SideIndependent, nil
	case "CIV", "CIVILIAN":
		return SideCivilian, nil
	case "UNKNOWN", "":
		return SideUnknown, nil
	}
	return SideUnknown, fmt.Errorf("unknown side %q", s)
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
