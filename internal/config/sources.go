package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/camsync/internal/ffmpeg"
)

// SourceConfig overrides the input of one pipeline slot.
type SourceConfig struct {
	ID      int                 `toml:"id" json:"id"`
	Source  string              `toml:"source" json:"source"`
	Options []ffmpeg.OptionType `toml:"options,omitempty" json:"options,omitempty"`
}

// Equal reports whether two source configs launch the same pipeline.
func (s SourceConfig) Equal(other SourceConfig) bool {
	return s.ID == other.ID && s.Source == other.Source && slices.Equal(s.Options, other.Options)
}

// SourcesFile is the on-disk layout of streams.toml.
type SourcesFile struct {
	Version int            `toml:"version"`
	Streams []SourceConfig `toml:"streams"`
}

// Sources maps slot ID to its override.
type Sources map[int]SourceConfig

// LoadSources reads per-slot source overrides. A missing file yields an
// empty set so every slot falls back to the global source URL.
func LoadSources(path string) (Sources, error) {
	sources := make(Sources)
	if path == "" {
		return sources, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return sources, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var file SourcesFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}

	for _, s := range file.Streams {
		if s.ID <= 0 {
			return nil, fmt.Errorf("stream id must be positive, got %d", s.ID)
		}
		if _, dup := sources[s.ID]; dup {
			return nil, fmt.Errorf("stream %d defined twice", s.ID)
		}
		if err := ffmpeg.ValidateOptions(s.Options); err != nil {
			return nil, fmt.Errorf("stream %d: %w", s.ID, err)
		}
		sources[s.ID] = s
	}

	return sources, nil
}

// SaveSources writes overrides sorted by slot ID.
func SaveSources(path string, sources Sources) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file := SourcesFile{Version: 1}
	for _, s := range sources {
		file.Streams = append(file.Streams, s)
	}
	sort.Slice(file.Streams, func(i, j int) bool { return file.Streams[i].ID < file.Streams[j].ID })

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write sources file: %w", err)
	}
	return nil
}

// Resolve returns the effective source for a slot.
func (s Sources) Resolve(id int, fallback string) SourceConfig {
	if cfg, ok := s[id]; ok && cfg.Source != "" {
		return cfg
	}
	cfg := s[id]
	cfg.ID = id
	cfg.Source = fallback
	return cfg
}
