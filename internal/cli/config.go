package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/cmdb/internal/paths"
	"github.com/mesh-intelligence/cmdb/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envPrefix      = "CMDB"

	cfgKeyBackend   = "backend"
	cfgKeyDataDir   = "data_dir"
	cfgKeyPacksDir  = "packs_dir"
	cfgKeyStoreDir  = "store_dir"
	cfgKeyListLimit = "list_limit"
	cfgKeyNeo4jURI  = "neo4j.uri"
	cfgKeyNeo4jUser = "neo4j.username"
	cfgKeyNeo4jPass = "neo4j.password"
	cfgKeyNeo4jDB   = "neo4j.database"
)

// envKeys are the config keys that CMDB_* environment variables override.
// Directory keys are left out; paths applies its own precedence to them.
var envKeys = []string{
	cfgKeyBackend, cfgKeyListLimit,
	cfgKeyNeo4jURI, cfgKeyNeo4jUser, cfgKeyNeo4jPass, cfgKeyNeo4jDB,
}

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# cmdb configuration

# Graph backend: sqlite or neo4j. The pack catalog always lives in SQLite.
backend: sqlite

# Data directory (overridable by --data-dir)
# data_dir:

# Installed and available feature pack bundles (default: <data_dir>/packs, <data_dir>/store)
# packs_dir:
# store_dir:

# Default page size for entity list (max 200)
# list_limit: 50

# neo4j:
#   uri: neo4j://localhost:7687
#   username: neo4j
#   password:
#   database: neo4j
`

// loadConfig reads config.yaml from the resolved config directory,
// creating the directory and a default file on first run.
func (a *app) loadConfig() error {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyListLimit, types.DefaultListLimit)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("%w: read config: %w", types.ErrInvalidConfig, err)
		}
	}
	a.configDir = configDir
	a.v = v
	return nil
}

// ensureDefaultConfigFile writes defaultConfigYAML unless config.yaml
// already exists.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// config resolves the effective types.Config from flags, config.yaml and
// the environment.
func (a *app) config() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.v.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	packsDir, err := paths.ResolveBundleDir(dataDir, paths.PacksDirName, "", a.v.GetString(cfgKeyPacksDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve packs dir: %w", err)
	}
	storeDir, err := paths.ResolveBundleDir(dataDir, paths.StoreDirName, "", a.v.GetString(cfgKeyStoreDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve store dir: %w", err)
	}

	cfg := types.Config{
		Backend:   a.v.GetString(cfgKeyBackend),
		DataDir:   dataDir,
		PacksDir:  packsDir,
		StoreDir:  storeDir,
		ListLimit: a.v.GetInt(cfgKeyListLimit),
		Neo4j: types.Neo4jConfig{
			URI:      a.v.GetString(cfgKeyNeo4jURI),
			Username: a.v.GetString(cfgKeyNeo4jUser),
			Password: a.v.GetString(cfgKeyNeo4jPass),
			Database: a.v.GetString(cfgKeyNeo4jDB),
		},
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}
