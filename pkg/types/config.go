package types

import "fmt"

// Config selects and parameterizes the storage backends.
type Config struct {
	Backend   string      `json:"backend" yaml:"backend"`
	DataDir   string      `json:"data_dir" yaml:"data_dir"`
	PacksDir  string      `json:"packs_dir,omitempty" yaml:"packs_dir,omitempty"`
	StoreDir  string      `json:"store_dir,omitempty" yaml:"store_dir,omitempty"`
	ListLimit int         `json:"list_limit,omitempty" yaml:"list_limit,omitempty"`
	Neo4j     Neo4jConfig `json:"neo4j,omitempty" yaml:"neo4j,omitempty"`
}

// Neo4jConfig holds connection settings for the Neo4j graph backend.
type Neo4jConfig struct {
	URI      string `json:"uri,omitempty" yaml:"uri,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Database string `json:"database,omitempty" yaml:"database,omitempty"`
}

// Supported graph backends. The catalog always lives in SQLite under DataDir.
const (
	BackendSQLite = "sqlite"
	BackendNeo4j  = "neo4j"
)

// List limits. Callers asking for more than MaxListLimit get MaxListLimit.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

var knownBackends = map[string]bool{
	BackendSQLite: true,
	BackendNeo4j:  true,
}

// Validate checks that the Config is well-formed.
func (c Config) Validate() error {
	if c.Backend == "" {
		return fmt.Errorf("%w: backend must not be empty", ErrInvalidConfig)
	}
	if !knownBackends[c.Backend] {
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	if c.Backend == BackendNeo4j && c.Neo4j.URI == "" {
		return fmt.Errorf("%w: neo4j backend requires neo4j.uri", ErrInvalidConfig)
	}
	if c.ListLimit < 0 || c.ListLimit > MaxListLimit {
		return fmt.Errorf("%w: list_limit must be between 0 and %d", ErrInvalidConfig, MaxListLimit)
	}
	return nil
}
