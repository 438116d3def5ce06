// Package testutil provides shared test helpers for the herald project.
// Import this in test files to avoid duplicating fixture loading, entity builders, etc.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	"github.com/potooio/herald/internal/types"
)

// FixturePath returns the absolute path of a file under testutil/testdata.
func FixturePath(name string) string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "testdata", name)
}

// LoadUpdate reads a YAML update fixture from testutil/testdata.
// Fails the test immediately if the file can't be read or parsed.
func LoadUpdate(t *testing.T, name string) types.Update {
	t.Helper()
	path := FixturePath(name)
	data, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read fixture %s", path)
	var u types.Update
	require.NoError(t, yaml.Unmarshal(data, &u), "failed to parse fixture %s", path)
	return u
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// MakeUsers builds a user map where each user's email is <id>@example.com.
func MakeUsers(ids ...string) map[string]types.User {
	users := make(map[string]types.User, len(ids))
	for _, id := range ids {
		users[id] = types.User{ID: id, Username: "user-" + id, Email: id + "@example.com"}
	}
	return users
}

// MakeProject creates a project entity in the given stage.
func MakeProject(id, stage string, members ...string) *types.Project {
	return &types.Project{
		ID:            id,
		Name:          "Project " + id,
		Stage:         stage,
		Priority:      "medium",
		TeamMemberIDs: members,
	}
}

// MakeTask creates a task entity assigned to assignee ("" for none).
func MakeTask(id, status, assignee string) *types.Task {
	return &types.Task{
		ID:          id,
		Title:       "Task " + id,
		Status:      status,
		Priority:    "medium",
		AssignedTo:  assignee,
		ProjectName: "Project P",
	}
}

// ProjectUpdate builds an update for a project. after is derived by the caller.
func ProjectUpdate(before *types.Project, patch *types.ProjectPatch, after *types.Project, users map[string]types.User) types.Update {
	u := types.Update{
		Kind:  types.EntityKindProject,
		Patch: types.Patch{Kind: types.EntityKindProject, Project: patch},
		After: types.Snapshot{
			Entity: types.Entity{Kind: types.EntityKindProject, Project: after},
			Users:  users,
		},
	}
	if before != nil {
		u.Before = &types.Entity{Kind: types.EntityKindProject, Project: before}
	}
	return u
}

// TaskUpdate builds an update for a task. after is derived by the caller.
func TaskUpdate(before *types.Task, patch *types.TaskPatch, after *types.Task, users map[string]types.User) types.Update {
	u := types.Update{
		Kind:  types.EntityKindTask,
		Patch: types.Patch{Kind: types.EntityKindTask, Task: patch},
		After: types.Snapshot{
			Entity: types.Entity{Kind: types.EntityKindTask, Task: after},
			Users:  users,
		},
	}
	if before != nil {
		u.Before = &types.Entity{Kind: types.EntityKindTask, Task: before}
	}
	return u
}
