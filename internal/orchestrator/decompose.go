package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clayworks/clay/internal/provider"
	"github.com/clayworks/clay/pkg/models"
)

// decompositionPrompt asks the model to split a request into
// parallelizable task nodes.
const decompositionPrompt = `Break this user request into parallelizable subtasks. Each subtask should be sized for a single agent to complete.

User request:
%s

Return ONLY a JSON array of tasks with this exact structure (no other text):
[
  {
    "title": "Short task title",
    "description": "Detailed task description",
    "depends_on": ["title of dependency 1"],
    "kind": "general | coding | research | creative",
    "priority": 0
  }
]

Guidelines:
- Tasks should be as independent as possible to allow parallel execution
- Only add dependencies when truly necessary (task A must complete before task B)
- Each task should be completable by a single agent in one session
- Higher priority runs first among simultaneously ready tasks
- Use empty array [] for depends_on if there are no dependencies`

// decomposedTask is the JSON structure the model returns for one task.
type decomposedTask struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DependsOn   []string `json:"depends_on"`
	Kind        string   `json:"kind"`
	Priority    int      `json:"priority"`
}

// Decomposer splits a user request into a set of task nodes with
// dependencies. Cycle rejection is left to the dependency graph the
// nodes are built into.
type Decomposer struct {
	providers map[string]provider.Provider
}

// NewDecomposer creates a Decomposer over the given backends.
func NewDecomposer(providers map[string]provider.Provider) *Decomposer {
	return &Decomposer{providers: providers}
}

// Decompose asks the model bound for planning to split the request,
// then parses the response into task nodes.
func (d *Decomposer) Decompose(ctx context.Context, request string, binding models.ModelBinding) ([]*models.TaskNode, error) {
	backend, ok := d.providers[binding.Provider]
	if !ok {
		return nil, fmt.Errorf("no backend for provider %q", binding.Provider)
	}

	completion, err := backend.Complete(ctx, provider.Request{
		Model:       binding.Model,
		Temperature: binding.Temperature,
		MaxTokens:   binding.MaxTokens,
		Messages: []provider.Message{
			provider.TextMessage(provider.RoleUser, fmt.Sprintf(decompositionPrompt, request)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("decomposition call: %w", err)
	}

	nodes, err := parseDecomposition(completion.Text())
	if err != nil {
		return nil, fmt.Errorf("parse decomposition response: %w", err)
	}
	return nodes, nil
}

// parseDecomposition extracts the JSON task array from the model's
// response and resolves dependency titles to node IDs.
func parseDecomposition(response string) ([]*models.TaskNode, error) {
	// The model may wrap the array in prose; find the outermost brackets.
	jsonStart := strings.Index(response, "[")
	jsonEnd := strings.LastIndex(response, "]")
	if jsonStart == -1 || jsonEnd <= jsonStart {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var decomposed []decomposedTask
	if err := json.Unmarshal([]byte(response[jsonStart:jsonEnd+1]), &decomposed); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	if len(decomposed) == 0 {
		return nil, fmt.Errorf("empty task list returned")
	}

	titleToID := make(map[string]string, len(decomposed))
	nodes := make([]*models.TaskNode, len(decomposed))
	now := time.Now()

	for i, dt := range decomposed {
		if dt.Title == "" {
			return nil, fmt.Errorf("task %d has no title", i)
		}
		if _, dup := titleToID[dt.Title]; dup {
			return nil, fmt.Errorf("duplicate task title %q", dt.Title)
		}
		id := uuid.New().String()
		titleToID[dt.Title] = id

		description := dt.Description
		if description == "" {
			description = dt.Title
		}
		kind := models.TaskKind(dt.Kind)
		if !kind.Valid() {
			kind = models.KindGeneral
		}

		nodes[i] = &models.TaskNode{
			ID:          id,
			Description: description,
			Priority:    dt.Priority,
			Status:      models.NodePending,
			AgentKind:   kind,
			CreatedAt:   now,
		}
	}

	for i, dt := range decomposed {
		for _, depTitle := range dt.DependsOn {
			depID, ok := titleToID[depTitle]
			if !ok {
				return nil, fmt.Errorf("unknown dependency %q for task %q", depTitle, dt.Title)
			}
			nodes[i].DependsOn = append(nodes[i].DependsOn, depID)
		}
	}

	return nodes, nil
}
