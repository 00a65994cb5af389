package runtime

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config tunes the heap's collection-triggering policy and the runtime's
// ambient behavior (spec §4.B, §9's GC_disable knob). Defaults come from
// DefaultConfig; LoadConfigFile overlays a TOML file on top, the way the
// teacher's own manifest/config loading works.
type Config struct {
	// MinFreePct triggers a collection once the heap's free-cell ratio
	// drops below this threshold.
	MinFreePct float64 `toml:"min_free_pct"`
	// GCCheckEvery is how many allocations pass between free-ratio checks;
	// 0 disables the policy entirely (every Allocate still succeeds, just
	// never triggers Collect on its own).
	GCCheckEvery uint64 `toml:"gc_check_every"`
	// GCDisabled turns off triggered collection outright; Collect can
	// still be called explicitly.
	GCDisabled bool `toml:"gc_disabled"`
	// Debug is carried through to Runtime.Config for the embedding host;
	// nothing in this package reads it, so it does not change the log level.
	Debug bool `toml:"debug"`
	// ProgramName and Argv seed the embedding CLI's $0/ARGV (spec §6).
	ProgramName string   `toml:"-"`
	Argv        []string `toml:"-"`
}

// DefaultConfig mirrors the teacher's own DefaultConfig: env-overridable
// defaults, no config file required to boot.
func DefaultConfig() *Config {
	return &Config{
		MinFreePct:   0.2,
		GCCheckEvery: 8192,
		GCDisabled:   false,
		Debug:        os.Getenv("RUBYCORE_DEBUG") != "",
	}
}

// LoadConfigFile overlays path's TOML fields onto cfg, leaving fields the
// file doesn't mention untouched. A missing or unreadable file is returned
// as an error — the caller only calls this when a path was explicitly given.
func LoadConfigFile(cfg *Config, path string) error {
	_, err := toml.DecodeFile(path, cfg)
	return err
}
