// Package parser turns host command arguments into typed values. It performs
// no lookups and has no side effects beyond debug logging.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/OCAP2/awacs/internal/util"
	"github.com/OCAP2/awacs/pkg/core"
)

// ErrInsufficientArgs is returned when a command carries fewer arguments than it needs.
var ErrInsufficientArgs = errors.New("insufficient arguments")

// Parser provides pure []string -> typed value conversion.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// clean strips host quoting from every argument in place.
func clean(data []string) {
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}
}

func need(data []string, n int) error {
	if len(data) < n {
		return fmt.Errorf("%w: got %d, need %d", ErrInsufficientArgs, len(data), n)
	}
	return nil
}

// parseSeconds reads host time, seconds since the Unix epoch, possibly fractional.
func parseSeconds(s string) (time.Time, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return time.Time{}, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return time.Time{}, fmt.Errorf("invalid time %q", s)
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return f, nil
}

func parseID(s string) (core.EntityID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("empty id")
	}
	return core.EntityID(s), nil
}

// parseWeapon reads a raw ["vehicle","weapon","magazine"] array, JSON or
// SQF-escaped. Anything else is taken as a bare weapon name; an all-empty
// array yields nil.
func parseWeapon(s string) *core.WeaponIdentity {
	s = strings.TrimSpace(s)
	var parts []string
	if err := json.Unmarshal([]byte(s), &parts); err != nil {
		parts = nil
		if err := json.Unmarshal([]byte(util.FixEscapeQuotes(s)), &parts); err != nil {
			vehicle, weapon, magazine := util.ParseSQFStringArray(util.TrimQuotes(s))
			parts = []string{vehicle, weapon, magazine}
		}
	}
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	if parts[0] == "" && parts[1] == "" && parts[2] == "" {
		return nil
	}
	return &core.WeaponIdentity{Vehicle: parts[0], Weapon: parts[1], Magazine: parts[2]}
}

// ParseCampaign parses [name, theatre?, latitude?, longitude?]. Missing
// optional fields stay zero.
func (p *Parser) ParseCampaign(data []string) (core.Campaign, error) {
	var result core.Campaign
	clean(data)

	if err := need(data, 1); err != nil {
		return result, err
	}
	result.Name = strings.TrimSpace(data[0])
	if result.Name == "" {
		return result, fmt.Errorf("error parsing name: %w", errors.New("empty campaign name"))
	}
	if len(data) > 1 {
		result.Theatre = data[1]
	}
	if len(data) > 3 {
		lat, err := parseFloat(data[2])
		if err != nil {
			return result, fmt.Errorf("error parsing latitude: %w", err)
		}
		lon, err := parseFloat(data[3])
		if err != nil {
			return result, fmt.Errorf("error parsing longitude: %w", err)
		}
		result.Latitude, result.Longitude = lat, lon
	}

	p.logger.Debug("Parsed campaign", "name", result.Name, "theatre", result.Theatre)
	return result, nil
}

// ParseUnit parses [id, side, typeName, name?].
func (p *Parser) ParseUnit(data []string) (core.Unit, error) {
	var result core.Unit
	clean(data)

	if err := need(data, 3); err != nil {
		return result, err
	}

	id, err := parseID(data[0])
	if err != nil {
		return result, fmt.Errorf("error parsing id: %w", err)
	}
	result.ID = id

	result.Side, err = core.ParseSide(data[1])
	if err != nil {
		return result, fmt.Errorf("error parsing side: %w", err)
	}
	result.Type = data[2]
	if len(data) > 3 {
		result.Name = data[3]
	}
	return result, nil
}
