package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"sqlite", Config{Backend: BackendSQLite, DataDir: "/tmp/x"}, false},
		{"neo4j with uri", Config{Backend: BackendNeo4j, Neo4j: Neo4jConfig{URI: "bolt://localhost:7687"}}, false},
		{"neo4j without uri", Config{Backend: BackendNeo4j}, true},
		{"empty backend", Config{}, true},
		{"unknown backend", Config{Backend: "postgres"}, true},
		{"limit too large", Config{Backend: BackendSQLite, ListLimit: MaxListLimit + 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
