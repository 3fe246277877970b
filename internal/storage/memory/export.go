// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/awacs/internal/util"
	"github.com/OCAP2/awacs/pkg/core"
)

// CampaignExport is the root JSON structure
type CampaignExport struct {
	Campaign core.Campaign     `json:"campaign"`
	EndTime  time.Time         `json:"endTime"`
	Summary  Summary           `json:"summary"`
	Events   [][]any           `json:"events"`
	Kills    []core.KillRecord `json:"kills"`
}

// Summary tallies kills for the after-action view.
type Summary struct {
	Kills        int            `json:"kills"`
	ByVictimSide map[string]int `json:"byVictimSide"`
	ByKillerSide map[string]int `json:"byKillerSide"`
	ByWeapon     map[string]int `json:"byWeapon"`
}

// exportJSON writes the campaign data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport(time.Now())

	// Build filename
	name := strings.ReplaceAll(b.campaign.Name, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	timestamp := b.campaign.StartTime.Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s.json", name, timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport(end time.Time) CampaignExport {
	export := CampaignExport{
		Campaign: *b.campaign,
		EndTime:  end,
		Summary: Summary{
			Kills:        len(b.kills),
			ByVictimSide: map[string]int{},
			ByKillerSide: map[string]int{},
			ByWeapon:     map[string]int{},
		},
		Events: make([][]any, 0, len(b.kills)),
		Kills:  b.kills,
	}
	if export.Kills == nil {
		export.Kills = []core.KillRecord{}
	}

	// Format: [secondsSinceStart, "killed", victimId, [killerId, weapon], shotCount]
	for _, k := range b.kills {
		export.Summary.ByVictimSide[k.VictimSide.String()]++

		killerID, weapon := "", util.WeaponText(nil)
		if killer, ok := k.Killer(); ok {
			killerID = string(killer.ShooterID)
			weapon = util.WeaponText(killer.Weapon)
			export.Summary.ByKillerSide[killer.ShooterSide.String()]++
		}
		export.Summary.ByWeapon[weapon]++

		export.Events = append(export.Events, []any{
			max(k.Time.Sub(b.campaign.StartTime).Seconds(), 0),
			"killed",
			string(k.VictimID),
			[]any{killerID, weapon},
			len(k.Shots),
		})
	}

	return export
}

func writeJSON(path string, data CampaignExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data CampaignExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		_ = gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}
