// Package config decodes fsfs repository configuration from a generic
// map, the way cs3org-reva's pkg/config and registry packages decode
// driver options with mitchellh/mapstructure.
package config

import "github.com/mitchellh/mapstructure"

// Config holds the tunables of an fsfs repository. Every field has a
// default matching Subversion's FSFS defaults so a zero-value map
// decodes into a usable configuration.
type Config struct {
	// Path is the repository root, the directory containing db/.
	Path string `mapstructure:"path"`

	// MaxFilesPerDir is the shard size (revisions per directory
	// before packing). Typical value: 1000.
	MaxFilesPerDir int64 `mapstructure:"max_files_per_dir"`

	// Format is the filesystem format number this repository was
	// created with or upgraded to.
	Format int `mapstructure:"format"`

	// BlockSize is the P2L index block size in bytes.
	BlockSize int `mapstructure:"block_size"`

	// PageSize is the target compressed L2P page size in bytes.
	PageSize int `mapstructure:"page_size"`

	// RevpropPackSize is the threshold, in bytes, above which a
	// packed revprop shard splits a pack file.
	RevpropPackSize int64 `mapstructure:"revprop_pack_size"`

	// MemoryCacheSize bounds the in-process page/revprop cache, in
	// number of cost units (see pkg/fsfs/pagecache).
	MemoryCacheSize int64 `mapstructure:"memory_cache_size"`

	// PackMemoryBudget bounds the pack engine's in-memory buffering,
	// in bytes, before it falls back to sectioned, scratch-file
	// processing.
	PackMemoryBudget int64 `mapstructure:"pack_memory_budget"`

	// PerItemMemoryEstimate is used together with PackMemoryBudget to
	// decide how many revisions worth of items fit in one pack
	// section.
	PerItemMemoryEstimate int64 `mapstructure:"per_item_memory_estimate"`

	// WriteLockTimeoutMS bounds how long a writer waits to acquire the
	// global write lock, in milliseconds. Zero means wait forever.
	WriteLockTimeoutMS int64 `mapstructure:"write_lock_timeout_ms"`

	// RevpropWriteTimeoutSeconds is how long, in seconds, a reader waits
	// before assuming a revprop writer died mid-update.
	RevpropWriteTimeoutSeconds int64 `mapstructure:"revprop_write_timeout_seconds"`

	// BoundaryWasteDivisor and BoundaryWasteFloor implement the P2L
	// block-boundary padding heuristic: pad when the wasted space is
	// less than max(blockSize/BoundaryWasteDivisor, BoundaryWasteFloor).
	BoundaryWasteDivisor int `mapstructure:"boundary_waste_divisor"`
	BoundaryWasteFloor   int `mapstructure:"boundary_waste_floor"`
}

// Default returns the Subversion-FSFS-compatible default configuration
// for the given repository path.
func Default(path string) Config {
	return Config{
		Path:                       path,
		MaxFilesPerDir:             1000,
		Format:                     7,
		BlockSize:                  64 * 1024,
		PageSize:                   8 * 1024,
		RevpropPackSize:            64 * 1024,
		MemoryCacheSize:            16 * 1024 * 1024,
		PackMemoryBudget:           64 * 1024 * 1024,
		PerItemMemoryEstimate:      64,
		WriteLockTimeoutMS:         10_000,
		RevpropWriteTimeoutSeconds: 10,
		BoundaryWasteDivisor:       50,
		BoundaryWasteFloor:         512,
	}
}

// Decode merges m over the defaults for path and returns the result.
func Decode(path string, m map[string]interface{}) (Config, error) {
	c := Default(path)
	if len(m) == 0 {
		return c, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &c,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(m); err != nil {
		return Config{}, err
	}
	return c, nil
}

// BoundaryWaste returns the maximum number of bytes the P2L writer
// will pad rather than let an item straddle a block boundary.
func (c Config) BoundaryWaste() int {
	waste := c.BlockSize / c.BoundaryWasteDivisor
	if waste < c.BoundaryWasteFloor {
		return c.BoundaryWasteFloor
	}
	return waste
}

// SupportsPacking reports whether this format supports packed
// revisions (format >= 4).
func (c Config) SupportsPacking() bool { return c.Format >= 4 }

// SupportsPackedRevprops reports whether this format supports packed
// revprop shards (format >= 5).
func (c Config) SupportsPackedRevprops() bool { return c.Format >= 5 }

// SupportsLogicalAddressing reports whether this format uses L2P/P2L
// indexes rather than physical offsets (format >= 7).
func (c Config) SupportsLogicalAddressing() bool { return c.Format >= 7 }
