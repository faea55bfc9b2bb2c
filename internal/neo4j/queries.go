package neo4j

import (
	"fmt"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// Cypher cannot bind labels or relationship types as parameters, so the
// builders below validate each identifier against the strict patterns in
// pkg/types before quoting it into the query text. Everything else is a
// bound parameter.

// propsKey is the node property holding the serialized property map.
const propsKey = "custom_properties"

func quoteLabel(label string) (string, error) {
	if err := types.ValidateLabel(label); err != nil {
		return "", err
	}
	return "`" + label + "`", nil
}

func quoteRelType(relType string) (string, error) {
	if err := types.ValidateRelationshipType(relType); err != nil {
		return "", err
	}
	return "`" + relType + "`", nil
}

func findQuery(label string) (string, error) {
	l, err := quoteLabel(label)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("MATCH (n:%s) WHERE elementId(n) = $id RETURN elementId(n) AS id, n.%s AS props", l, propsKey), nil
}

func createQuery(label string) (string, error) {
	l, err := quoteLabel(label)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE (n:%s {%s: $props}) RETURN elementId(n) AS id", l, propsKey), nil
}

func updateQuery(label string) (string, error) {
	l, err := quoteLabel(label)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("MATCH (n:%s) WHERE elementId(n) = $id SET n.%s = $props RETURN elementId(n) AS id", l, propsKey), nil
}

func deleteQuery(label string) (string, error) {
	l, err := quoteLabel(label)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("MATCH (n:%s) WHERE elementId(n) = $id WITH n, elementId(n) AS id DETACH DELETE n RETURN id", l), nil
}

func listQuery(label string) (string, error) {
	l, err := quoteLabel(label)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("MATCH (n:%s) RETURN elementId(n) AS id, n.%s AS props ORDER BY id SKIP $offset LIMIT $limit", l, propsKey), nil
}

func countQuery(label string) (string, error) {
	l, err := quoteLabel(label)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS n", l), nil
}

func edgeParts(sourceLabel, relType, targetLabel string) (src, rel, tgt string, err error) {
	if src, err = quoteLabel(sourceLabel); err != nil {
		return "", "", "", err
	}
	if rel, err = quoteRelType(relType); err != nil {
		return "", "", "", err
	}
	if tgt, err = quoteLabel(targetLabel); err != nil {
		return "", "", "", err
	}
	return src, rel, tgt, nil
}

// mergeEdgeQuery returns one row when both endpoints exist and none
// otherwise.
func mergeEdgeQuery(sourceLabel, relType, targetLabel string) (string, error) {
	src, rel, tgt, err := edgeParts(sourceLabel, relType, targetLabel)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"MATCH (a:%s) WHERE elementId(a) = $sid MATCH (b:%s) WHERE elementId(b) = $tid MERGE (a)-[r:%s]->(b) RETURN count(r) AS n",
		src, tgt, rel), nil
}

func deleteEdgeQuery(sourceLabel, relType, targetLabel string) (string, error) {
	src, rel, tgt, err := edgeParts(sourceLabel, relType, targetLabel)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"MATCH (a:%s)-[r:%s]->(b:%s) WHERE elementId(a) = $sid AND elementId(b) = $tid WITH r LIMIT 1 DELETE r RETURN count(*) AS n",
		src, rel, tgt), nil
}

func outgoingQuery(label string) (string, error) {
	l, err := quoteLabel(label)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"MATCH (a:%s)-[r]->(b) WHERE elementId(a) = $id RETURN type(r) AS rel, elementId(b) AS id, labels(b)[0] AS label, b.%s AS props ORDER BY rel, id",
		l, propsKey), nil
}

func incomingQuery(label string) (string, error) {
	l, err := quoteLabel(label)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"MATCH (a:%s)<-[r]-(b) WHERE elementId(a) = $id RETURN type(r) AS rel, elementId(b) AS id, labels(b)[0] AS label, b.%s AS props ORDER BY rel, id",
		l, propsKey), nil
}
