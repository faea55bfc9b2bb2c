package packs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// Manifest and type file names, in lookup order.
var (
	manifestFiles = []string{"pack.yaml", "pack.yml", "pack.toml", "pack.json"}
	typesFiles    = []string{"types.yaml", "types.yml", "types.json"}
)

// Bundle is a pack as found on disk: its manifest, the type definitions it
// provides and the latest modification time of its files.
type Bundle struct {
	Dir      string
	Manifest types.PackManifest
	Types    []types.TypeDefinition
	ModTime  time.Time
}

// Name returns the manifest name.
func (b *Bundle) Name() string { return b.Manifest.Name }

// Labels returns the labels of the provided types in sorted order.
func (b *Bundle) Labels() []string {
	labels := make([]string, len(b.Types))
	for i, t := range b.Types {
		labels[i] = t.Label
	}
	return labels
}

var versionPattern = regexp.MustCompile(`^v?[0-9]+(\.[0-9]+)*$`)

var manifestValidate = newManifestValidator()

func newManifestValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("packname", func(fl validator.FieldLevel) bool {
		return types.ValidatePackName(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("label", func(fl validator.FieldLevel) bool {
		return types.IsValidLabel(fl.Field().String())
	})
	_ = v.RegisterValidation("version", func(fl validator.FieldLevel) bool {
		return versionPattern.MatchString(fl.Field().String())
	})
	return v
}

// LoadBundle reads the manifest and type definitions in dir. A manifest
// without a name takes the directory name. Type definitions are normalized
// and returned sorted by label.
func LoadBundle(dir string) (*Bundle, error) {
	manifest, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	if manifest.Name == "" {
		manifest.Name = filepath.Base(dir)
	}
	if err := manifestValidate.Struct(manifest); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrInvalidManifest, dir, err)
	}

	defs, err := readTypes(dir)
	if err != nil {
		return nil, err
	}
	modTime, err := latestModTime(dir)
	if err != nil {
		return nil, err
	}
	return &Bundle{Dir: dir, Manifest: manifest, Types: defs, ModTime: modTime}, nil
}

func readManifest(dir string) (types.PackManifest, error) {
	var m types.PackManifest
	for _, name := range manifestFiles {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return m, fmt.Errorf("read manifest %s: %w", path, err)
		}
		switch filepath.Ext(name) {
		case ".toml":
			err = toml.Unmarshal(data, &m)
		case ".json":
			err = json.Unmarshal(data, &m)
		default:
			err = yaml.Unmarshal(data, &m)
		}
		if err != nil {
			return m, fmt.Errorf("%w: %s: %w", types.ErrInvalidManifest, path, err)
		}
		return m, nil
	}
	return m, fmt.Errorf("%w: no manifest in %s", types.ErrInvalidManifest, dir)
}

// readTypes decodes the label-keyed type map. A bundle without a types
// file provides no types.
func readTypes(dir string) ([]types.TypeDefinition, error) {
	for _, name := range typesFiles {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read types %s: %w", path, err)
		}
		byLabel := map[string]types.TypeDefinition{}
		if filepath.Ext(name) == ".json" {
			err = json.Unmarshal(data, &byLabel)
		} else {
			err = yaml.Unmarshal(data, &byLabel)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", types.ErrInvalidManifest, path, err)
		}
		return normalizeTypes(path, byLabel)
	}
	return []types.TypeDefinition{}, nil
}

func normalizeTypes(path string, byLabel map[string]types.TypeDefinition) ([]types.TypeDefinition, error) {
	labels := make([]string, 0, len(byLabel))
	for label := range byLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	defs := make([]types.TypeDefinition, 0, len(labels))
	for _, label := range labels {
		def := byLabel[label]
		def.Label = label
		def.Normalize()
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// latestModTime returns the newest mtime of dir and everything under it.
func latestModTime(dir string) (time.Time, error) {
	var latest time.Time
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("stat bundle %s: %w", dir, err)
	}
	return latest, nil
}

// Discover loads every bundle directly under root. Directories that fail
// to load are reported in the joined error and skipped. A missing root
// yields no bundles.
func Discover(root string) ([]*Bundle, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read packs directory: %w", err)
	}

	var bundles []*Bundle
	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if types.ValidatePackName(entry.Name()) != nil {
			continue
		}
		b, err := loadNamedBundle(filepath.Join(root, entry.Name()), entry.Name())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		bundles = append(bundles, b)
	}
	sort.Slice(bundles, func(i, j int) bool { return bundles[i].Name() < bundles[j].Name() })
	return bundles, errors.Join(errs...)
}

// loadNamedBundle loads the bundle in dir and requires its manifest name to
// match name, the directory a pack is installed under.
func loadNamedBundle(dir, name string) (*Bundle, error) {
	b, err := LoadBundle(dir)
	if err != nil {
		return nil, err
	}
	if b.Name() != name {
		return nil, fmt.Errorf("%w: bundle in %s is named %q", types.ErrInvalidManifest, dir, b.Name())
	}
	return b, nil
}
