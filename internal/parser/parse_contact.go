package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/OCAP2/awacs/internal/contact"
	"github.com/OCAP2/awacs/internal/geo"
	"github.com/OCAP2/awacs/pkg/core"
)

// ParseSensor parses ["x,y", side, range].
func (p *Parser) ParseSensor(data []string) (contact.Sensor, error) {
	var result contact.Sensor
	clean(data)

	if err := need(data, 3); err != nil {
		return result, err
	}

	pos, err := geo.Position2DFromString(data[0])
	if err != nil {
		return result, fmt.Errorf("error parsing position: %w", err)
	}
	result.Position = pos

	result.Side, err = core.ParseSide(data[1])
	if err != nil {
		return result, fmt.Errorf("error parsing side: %w", err)
	}

	result.Range, err = parseFloat(data[2])
	if err != nil {
		return result, fmt.Errorf("error parsing range: %w", err)
	}
	if result.Range < 0 {
		return result, fmt.Errorf("error parsing range: negative value %v", result.Range)
	}
	return result, nil
}

// ParseAir parses [id, side, "x,y,z", "vx,vy,vz"]. The velocity is optional.
func (p *Parser) ParseAir(data []string) (contact.Target, error) {
	var result contact.Target
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

	result.Position, err = geo.Position3DFromString(data[2])
	if err != nil {
		return result, fmt.Errorf("error parsing position: %w", err)
	}

	if len(data) > 3 && strings.TrimSpace(data[3]) != "" {
		result.Velocity, err = geo.Velocity3DFromString(data[3])
		if err != nil {
			return result, fmt.Errorf("error parsing velocity: %w", err)
		}
	}
	return result, nil
}

// ParseTime parses a single [time] argument, as sent by :TICK: and :DRAIN:.
func (p *Parser) ParseTime(data []string) (time.Time, error) {
	clean(data)
	if err := need(data, 1); err != nil {
		return time.Time{}, err
	}
	t, err := parseSeconds(data[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("error parsing time: %w", err)
	}
	return t, nil
}

// ParseReport parses [time, friendly, observerId, side, "x,y,z"].
func (p *Parser) ParseReport(data []string) (ReportRequest, error) {
	var result ReportRequest
	clean(data)

	if err := need(data, 5); err != nil {
		return result, err
	}

	var err error
	result.Time, err = parseSeconds(data[0])
	if err != nil {
		return result, fmt.Errorf("error parsing time: %w", err)
	}

	result.Friendly, err = strconv.ParseBool(strings.TrimSpace(data[1]))
	if err != nil {
		return result, fmt.Errorf("error parsing friendly: %w", err)
	}

	result.ObserverID, err = parseID(data[2])
	if err != nil {
		return result, fmt.Errorf("error parsing observerId: %w", err)
	}

	result.Side, err = core.ParseSide(data[3])
	if err != nil {
		return result, fmt.Errorf("error parsing side: %w", err)
	}

	result.Position, err = geo.Position3DFromString(data[4])
	if err != nil {
		return result, fmt.Errorf("error parsing position: %w", err)
	}
	return result, nil
}

// ParseObserver parses [observerId].
func (p *Parser) ParseObserver(data []string) (core.EntityID, error) {
	clean(data)
	if err := need(data, 1); err != nil {
		return "", err
	}
	id, err := parseID(data[0])
	if err != nil {
		return "", fmt.Errorf("error parsing observerId: %w", err)
	}
	return id, nil
}

// ParseUnits parses [observerId, "metric"|"imperial"].
func (p *Parser) ParseUnits(data []string) (UnitsRequest, error) {
	var result UnitsRequest
	clean(data)

	if err := need(data, 2); err != nil {
		return result, err
	}

	var err error
	result.ObserverID, err = parseID(data[0])
	if err != nil {
		return result, fmt.Errorf("error parsing observerId: %w", err)
	}
	result.Units, err = core.ParseUnitSystem(data[1])
	if err != nil {
		return result, fmt.Errorf("error parsing units: %w", err)
	}
	return result, nil
}
