package config

import (
	"encoding/json"
	"os"
)

// Config holds runtime configuration for capture scheduling, alignment and
// output. Fields may be loaded from a JSON file and overridden by flags.
type Config struct {
	Debug bool `json:"debug"`

	// Frame scheduler period while capturing.
	TickMillis int `json:"tick_millis"`

	// Minimum selection width/height; smaller drags cancel the session.
	MinSelectionPts int `json:"min_selection_pts"`

	// Alignment parameters
	AlignTopMarginPts    float64 `json:"align_top_margin_pts"`
	AlignBottomMarginPts float64 `json:"align_bottom_margin_pts"`
	MatchThreshold       float64 `json:"match_threshold"`
	MinOverlapPts        float64 `json:"min_overlap_pts"`
	SkipDuplicateFrames  bool    `json:"skip_duplicate_frames"`

	// Output parameters
	Quality     string `json:"quality"` // "lossy" or "lossless"
	JPEGQuality int    `json:"jpeg_quality"`
	OutputDir   string `json:"output_dir"` // empty selects the user pictures dir

	// Last confirmed selection rectangle (points), persisted across runs.
	SelectionX int `json:"selection_x"`
	SelectionY int `json:"selection_y"`
	SelectionW int `json:"selection_w"`
	SelectionH int `json:"selection_h"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:                false,
		TickMillis:           250,
		MinSelectionPts:      20,
		AlignTopMarginPts:    200,
		AlignBottomMarginPts: 100,
		MatchThreshold:       0.85,
		MinOverlapPts:        48,
		SkipDuplicateFrames:  true,
		Quality:              "lossy",
		JPEGQuality:          75,
		OutputDir:            "",
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	if c.TickMillis <= 0 {
		c.TickMillis = 250
	}
	if c.MinSelectionPts <= 0 {
		c.MinSelectionPts = 20
	}
	if c.AlignTopMarginPts < 0 {
		c.AlignTopMarginPts = 200
	}
	if c.AlignBottomMarginPts < 0 {
		c.AlignBottomMarginPts = 100
	}
	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		c.MatchThreshold = 0.85
	}
	if c.MinOverlapPts <= 0 {
		c.MinOverlapPts = 48
	}
	if c.Quality != "lossy" && c.Quality != "lossless" {
		c.Quality = "lossy"
	}
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = 75
	}
	return nil
}

// Load attempts to read configuration from the given JSON file path. If the
// file does not exist it returns DefaultConfig(). On JSON error it returns
// defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return cfg, err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
