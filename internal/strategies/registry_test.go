package strategies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potooio/herald/internal/types"
)

type stubStrategy struct {
	kind   types.EntityKind
	events []types.NotificationEvent
	cs     types.ChangeSet
}

func (s *stubStrategy) Kind() types.EntityKind { return s.kind }
func (s *stubStrategy) Detect(*types.Entity, types.Patch) (types.ChangeSet, error) {
	return s.cs, nil
}
func (s *stubStrategy) Resolve(types.ChangeSet, types.Snapshot) []types.NotificationEvent {
	return s.events
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	s := &stubStrategy{kind: types.EntityKindTask}
	require.NoError(t, r.Register(s))

	assert.Same(t, s, r.ForKind(types.EntityKindTask))
	assert.Nil(t, r.ForKind(types.EntityKindClient))
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubStrategy{kind: types.EntityKindTask}))
	err := r.Register(&stubStrategy{kind: types.EntityKindTask})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_EmptyKind(t *testing.T) {
	assert.Error(t, NewRegistry().Register(&stubStrategy{}))
}

func TestDefault_Kinds(t *testing.T) {
	assert.Equal(t,
		[]types.EntityKind{types.EntityKindClient, types.EntityKindProject, types.EntityKindTask},
		Default().Kinds())
}

func TestEvaluate_UnknownKind(t *testing.T) {
	_, _, err := NewRegistry().Evaluate(types.Update{Kind: types.EntityKindTask})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestEvaluate_SnapshotKindMismatch(t *testing.T) {
	_, _, err := Default().Evaluate(types.Update{
		Kind:  types.EntityKindTask,
		After: types.Snapshot{Entity: types.Entity{Kind: types.EntityKindProject}},
	})
	assert.ErrorIs(t, err, types.ErrKindMismatch)
}

func TestEvaluate_EmptyChangeSetSkipsResolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubStrategy{
		kind:   types.EntityKindClient,
		cs:     types.ChangeSet{},
		events: []types.NotificationEvent{{Type: types.EventClientCreated}},
	}))
	cs, events, err := r.Evaluate(types.Update{
		Kind:  types.EntityKindClient,
		After: types.Snapshot{Entity: types.Entity{Kind: types.EntityKindClient}},
	})
	require.NoError(t, err)
	assert.True(t, cs.Empty())
	assert.Empty(t, events)
}

func TestEvaluate_ProjectStageCompleted(t *testing.T) {
	stage := "completed"
	before := &types.Project{ID: "p1", Name: "Site", Stage: "in_progress", TeamMemberIDs: []string{"u1", "u2"}}
	after := *before
	after.Stage = stage

	_, events, err := Default().Evaluate(types.Update{
		Kind:   types.EntityKindProject,
		Before: &types.Entity{Kind: types.EntityKindProject, Project: before},
		Patch:  types.Patch{Kind: types.EntityKindProject, Project: &types.ProjectPatch{Stage: &stage}},
		After:  types.Snapshot{Entity: types.Entity{Kind: types.EntityKindProject, Project: &after}},
	})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, types.EventProjectStatusChanged, events[0].Type)
	assert.Equal(t, types.EventProjectCompleted, events[1].Type)
}
