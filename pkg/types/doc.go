// Package types defines the data model of the configuration-management
// database: type definitions, entities, relationships and feature packs,
// together with the GraphStore and Catalog interfaces that storage backends
// implement and the standard error types returned across the core.
package types
