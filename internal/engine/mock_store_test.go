package engine

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// mockStore is a testify GraphStore double for failure injection and for
// asserting that validation happens before any store call.
type mockStore struct {
	mock.Mock
}

var _ types.GraphStore = (*mockStore)(nil)

func (m *mockStore) FindByLabelAndID(ctx context.Context, label, id string) (*types.Node, error) {
	args := m.Called(ctx, label, id)
	n, _ := args.Get(0).(*types.Node)
	return n, args.Error(1)
}

func (m *mockStore) CreateNode(ctx context.Context, label string, properties []byte) (string, error) {
	args := m.Called(ctx, label, properties)
	return args.String(0), args.Error(1)
}

func (m *mockStore) UpdateNode(ctx context.Context, label, id string, properties []byte) error {
	return m.Called(ctx, label, id, properties).Error(0)
}

func (m *mockStore) DeleteNode(ctx context.Context, label, id string) error {
	return m.Called(ctx, label, id).Error(0)
}

func (m *mockStore) ListByLabel(ctx context.Context, label string, limit, offset int) ([]types.Node, error) {
	args := m.Called(ctx, label, limit, offset)
	nodes, _ := args.Get(0).([]types.Node)
	return nodes, args.Error(1)
}

func (m *mockStore) CountByLabel(ctx context.Context, label string) (int, error) {
	args := m.Called(ctx, label)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) MergeEdge(ctx context.Context, sourceLabel, sourceID, relType, targetLabel, targetID string) error {
	return m.Called(ctx, sourceLabel, sourceID, relType, targetLabel, targetID).Error(0)
}

func (m *mockStore) DeleteEdge(ctx context.Context, sourceLabel, sourceID, relType, targetLabel, targetID string) (int, error) {
	args := m.Called(ctx, sourceLabel, sourceID, relType, targetLabel, targetID)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) OutgoingEdges(ctx context.Context, label, id string) ([]types.Edge, error) {
	args := m.Called(ctx, label, id)
	edges, _ := args.Get(0).([]types.Edge)
	return edges, args.Error(1)
}

func (m *mockStore) IncomingEdges(ctx context.Context, label, id string) ([]types.Edge, error) {
	args := m.Called(ctx, label, id)
	edges, _ := args.Get(0).([]types.Edge)
	return edges, args.Error(1)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
