package strategies

import (
	"github.com/potooio/herald/internal/strategies/client"
	"github.com/potooio/herald/internal/strategies/project"
	"github.com/potooio/herald/internal/strategies/task"
	"github.com/potooio/herald/internal/types"
)

// Default returns a registry with the project, task and client strategies.
func Default() *Registry {
	r := NewRegistry()
	for _, s := range []types.Strategy{project.New(), task.New(), client.New()} {
		if err := r.Register(s); err != nil {
			// Built-in kinds are distinct; a collision is a programming error.
			panic(err)
		}
	}
	return r
}
