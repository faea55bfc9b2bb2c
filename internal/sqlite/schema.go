package sqlite

// Schema DDL. Statements are idempotent so Open can run them on every start.
const (
	createNodes = `CREATE TABLE IF NOT EXISTS nodes (
    node_id TEXT PRIMARY KEY,
    label TEXT NOT NULL,
    properties TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createEdges = `CREATE TABLE IF NOT EXISTS edges (
    edge_id TEXT PRIMARY KEY,
    rel_type TEXT NOT NULL,
    from_id TEXT NOT NULL,
    to_id TEXT NOT NULL,
    created_at TEXT NOT NULL,
    FOREIGN KEY (from_id) REFERENCES nodes(node_id) ON DELETE CASCADE,
    FOREIGN KEY (to_id) REFERENCES nodes(node_id) ON DELETE CASCADE
);`

	createFeaturePacks = `CREATE TABLE IF NOT EXISTS feature_packs (
    name TEXT PRIMARY KEY,
    display_name TEXT NOT NULL,
    enabled INTEGER NOT NULL,
    source_path TEXT NOT NULL,
    version TEXT NOT NULL,
    dependencies TEXT NOT NULL,
    provided_types TEXT NOT NULL,
    manifest TEXT NOT NULL,
    last_modified TEXT NOT NULL,
    last_synced TEXT NOT NULL
);`

	createTypeDefinitions = `CREATE TABLE IF NOT EXISTS type_definitions (
    label TEXT PRIMARY KEY,
    pack TEXT NOT NULL,
    definition TEXT NOT NULL,
    enabled INTEGER NOT NULL,
    last_synced TEXT NOT NULL
);`
)

// Index DDL. The unique edge index makes MergeEdge idempotent under
// concurrent callers.
const (
	idxNodesLabel  = `CREATE INDEX IF NOT EXISTS idx_nodes_label ON nodes(label, node_id);`
	idxEdgesUnique = `CREATE UNIQUE INDEX IF NOT EXISTS idx_edges_unique ON edges(rel_type, from_id, to_id);`
	idxEdgesFrom   = `CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_id);`
	idxEdgesTo     = `CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_id);`
	idxTypesPack   = `CREATE INDEX IF NOT EXISTS idx_type_definitions_pack ON type_definitions(pack);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createNodes,
	createEdges,
	createFeaturePacks,
	createTypeDefinitions,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxNodesLabel,
	idxEdgesUnique,
	idxEdgesFrom,
	idxEdgesTo,
	idxTypesPack,
}
