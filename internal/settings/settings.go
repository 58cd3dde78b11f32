// Package settings loads the fleet-wide DRR weights and pause switch from
// _system/settings.json, reloaded every dispatcher/executor tick (spec
// §3/§4.8) rather than on its own timer.
package settings

import (
	"encoding/json"
	"os"

	"github.com/PhiSkr/RenderFleet/internal/fleetpath"
	"github.com/PhiSkr/RenderFleet/internal/rfsync"
	"github.com/PhiSkr/RenderFleet/pkg/models"
)

// defaultSettings is written out the first time no settings.json exists,
// matching the original implementation seeding {"default": 10}.
func defaultSettings() models.Settings {
	return models.Settings{Weights: map[string]int{"default": 10}, Paused: false}
}

// Load reads settings.json, creating it with defaults if absent. A
// malformed file is ignored and the defaults are returned, per spec §7's
// "malformed state" policy. The "default" key is guaranteed present on
// return.
func Load(paths fleetpath.Paths) models.Settings {
	path := paths.SettingsFile()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s := defaultSettings()
			_ = Save(paths, s)
			return s
		}
		return defaultSettings()
	}

	var s models.Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return defaultSettings()
	}
	if s.Weights == nil {
		s.Weights = map[string]int{}
	}
	if _, ok := s.Weights["default"]; !ok {
		s.Weights["default"] = 1
	}
	return s
}

// Save atomically writes s to settings.json.
func Save(paths fleetpath.Paths, s models.Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return rfsync.WriteFileAtomic(paths.SettingsFile(), data, 0o644)
}
