package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseShot parses [time, shooterId, targetId, weapon]. The weapon is a
// ["vehicle","weapon","magazine"] array; an empty array means unknown.
func (p *Parser) ParseShot(data []string) (ShotArgs, error) {
	var result ShotArgs
	weapon := ""
	if len(data) > 3 {
		weapon = data[3]
	}
	clean(data)

	if err := need(data, 3); err != nil {
		return result, err
	}

	var err error
	result.Time, err = parseSeconds(data[0])
	if err != nil {
		return result, fmt.Errorf("error parsing time: %w", err)
	}

	result.ShooterID, err = parseID(data[1])
	if err != nil {
		return result, fmt.Errorf("error parsing shooterId: %w", err)
	}

	result.TargetID, err = parseID(data[2])
	if err != nil {
		return result, fmt.Errorf("error parsing targetId: %w", err)
	}

	if weapon != "" {
		result.Weapon = parseWeapon(weapon)
	}
	return result, nil
}

// ParseHit parses [time, shooterId, targetId, weapon, lethal]. A missing
// lethal flag means the hit was not lethal.
func (p *Parser) ParseHit(data []string) (HitArgs, error) {
	var result HitArgs

	shot, err := p.ParseShot(data)
	if err != nil {
		return result, err
	}
	result.ShotArgs = shot

	if len(data) > 4 && strings.TrimSpace(data[4]) != "" {
		result.Lethal, err = strconv.ParseBool(strings.TrimSpace(data[4]))
		if err != nil {
			return result, fmt.Errorf("error parsing lethal: %w", err)
		}
	}
	return result, nil
}

// ParseDeath parses [time, targetId].
func (p *Parser) ParseDeath(data []string) (DeathArgs, error) {
	var result DeathArgs
	clean(data)

	if err := need(data, 2); err != nil {
		return result, err
	}

	var err error
	result.Time, err = parseSeconds(data[0])
	if err != nil {
		return result, fmt.Errorf("error parsing time: %w", err)
	}
	result.TargetID, err = parseID(data[1])
	if err != nil {
		return result, fmt.Errorf("error parsing targetId: %w", err)
	}
	return result, nil
}
