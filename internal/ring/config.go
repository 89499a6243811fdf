package ring

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"nandring/internal/nand"
)

// MinRingLen is the smallest ring length the engine accepts, per the
// data-model invariant that len must be >= 64.
const MinRingLen = 64

// MinGoodBlocksToMount is the fewest good blocks a ring may have at
// Mount time; below this Mount reports failure and the ring stays IDLE.
const MinGoodBlocksToMount = MinRingLen / 2

// Config is the immutable configuration a ring is bound to at Start.
// It mirrors the superblock-style validation chain the teacher uses for
// its on-disk format (magic/version/page-size/feature-flags), here
// applied to ring geometry instead of a file header.
type Config struct {
	Nand     nand.Driver `yaml:"-"`
	StartBlk BlockIndex  `yaml:"start_block"`
	Len      int         `yaml:"length"`
}

// FileConfig is the YAML-decodable shape of a ring configuration file.
// It never carries a nand.Driver — the driver is always supplied by the
// caller (the real device, or internal/nand.Sim for tests and demos) and
// attached after decoding.
type FileConfig struct {
	StartBlock int `yaml:"start_block"`
	Length     int `yaml:"length"`
}

// LoadConfigFile reads a YAML ring configuration from path and binds it
// to drv, validating the combined result.
func LoadConfigFile(path string, drv nand.Driver) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("ring: read config %s: %w", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return Config{}, fmt.Errorf("ring: parse config %s: %w", path, err)
	}
	cfg := Config{
		Nand:     drv,
		StartBlk: BlockIndex(fc.StartBlock),
		Len:      fc.Length,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ring geometry the way the teacher's UnmarshalSuperblock
// validates magic/version/page-size: reject anything the engine cannot
// safely operate on, with a descriptive error rather than a panic — this
// runs before a ring is ever mounted, so it is caller-facing, not an
// internal assertion.
func (c Config) Validate() error {
	if c.Nand == nil {
		return fmt.Errorf("ring: config has no NAND driver bound")
	}
	if c.Len < MinRingLen {
		return fmt.Errorf("ring: length %d below minimum %d", c.Len, MinRingLen)
	}
	if int(c.StartBlk) < 0 || int(c.StartBlk)+c.Len > c.Nand.Blocks() {
		return fmt.Errorf("ring: [start_blk=%d, len=%d) exceeds device block count %d",
			c.StartBlk, c.Len, c.Nand.Blocks())
	}
	if err := validateSpareSize(c.Nand.PageSpareSize()); err != nil {
		return err
	}
	if c.Nand.PageDataSize() <= 0 {
		return fmt.Errorf("ring: page data size must be positive")
	}
	return nil
}
