package workflow

import (
	"sort"
	"strings"
	"sync"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// Steps is the ordered, active step sequence of one workflow type
type Steps []entity.StepConfig

// IndexOf returns the position of the named step or -1
func (s Steps) IndexOf(name string) int {
	for i := range s {
		if s[i].StepName == name {
			return i
		}
	}
	return -1
}

func (s Steps) Find(name string) (entity.StepConfig, bool) {
	if i := s.IndexOf(name); i >= 0 {
		return s[i], true
	}
	return entity.StepConfig{}, false
}

// After returns the step positioned right after the named one.
func (s Steps) After(name string) (entity.StepConfig, bool) {
	i := s.IndexOf(name)
	if i < 0 || i >= len(s)-1 {
		return entity.StepConfig{}, false
	}
	return s[i+1], true
}

// IsLast reports whether name is the final configured step
func (s Steps) IsLast(name string) bool {
	return len(s) > 0 && s[len(s)-1].StepName == name
}

// NextHint is the name of the step after name, or COMPLETED at the end.
func (s Steps) NextHint(name string) string {
	if next, ok := s.After(name); ok {
		return next.StepName
	}
	return entity.StepCompleted
}

type catalogEntry struct {
	steps Steps
	err   error
}

// Catalog holds the validated step sequences per workflow type. Reload
// swaps the whole snapshot; callers that already resolved step names are
// unaffected.
type Catalog struct {
	mu       sync.RWMutex
	entries  map[string]catalogEntry
	revision int64
}

// NewCatalog builds a catalog from raw step configurations
func NewCatalog(configs []entity.StepConfig) *Catalog {
	c := &Catalog{}
	c.Reload(configs)
	return c
}

// Reload replaces the snapshot. Types whose configuration is broken are kept
// with their error so initiation fails with ErrConfiguration.
func (c *Catalog) Reload(configs []entity.StepConfig) {
	entries := buildEntries(configs)

	c.mu.Lock()
	c.entries = entries
	c.revision++
	c.mu.Unlock()
}

// Revision counts reloads; it starts at 1.
func (c *Catalog) Revision() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.revision
}

// StepsFor returns the active steps of workflowType in sequence order.
func (c *Catalog) StepsFor(workflowType string) (Steps, error) {
	c.mu.RLock()
	entry, ok := c.entries[workflowType]
	c.mu.RUnlock()

	if !ok {
		return nil, Configurationf("no active steps configured for workflow type %s", workflowType)
	}
	if entry.err != nil {
		return nil, entry.err
	}
	return append(Steps(nil), entry.steps...), nil
}

// WorkflowTypes lists the configured types, valid or not.
func (c *Catalog) WorkflowTypes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	types := make([]string, 0, len(c.entries))
	for t := range c.entries {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func buildEntries(configs []entity.StepConfig) map[string]catalogEntry {
	grouped := make(map[string]Steps)
	for _, cfg := range configs {
		if !cfg.IsActive {
			continue
		}
		grouped[cfg.WorkflowType] = append(grouped[cfg.WorkflowType], cfg)
	}

	entries := make(map[string]catalogEntry, len(grouped))
	for workflowType, steps := range grouped {
		sort.SliceStable(steps, func(i, j int) bool { return steps[i].SequenceOrder < steps[j].SequenceOrder })
		entries[workflowType] = catalogEntry{steps: steps, err: validateSteps(workflowType, steps)}
	}
	return entries
}

func validateSteps(workflowType string, steps Steps) error {
	if len(steps) == 0 {
		return Configurationf("no active steps configured for workflow type %s", workflowType)
	}

	names := make(map[string]bool, len(steps))
	for i, step := range steps {
		if strings.TrimSpace(step.StepName) == "" {
			return Configurationf("workflow type %s has a step without a name at sequence %d", workflowType, step.SequenceOrder)
		}
		if strings.TrimSpace(step.ApproverRole) == "" {
			return Configurationf("step %s of %s has no approver role", step.StepName, workflowType)
		}
		if names[step.StepName] {
			return Configurationf("step %s appears more than once in %s", step.StepName, workflowType)
		}
		names[step.StepName] = true

		if i > 0 && steps[i-1].SequenceOrder >= step.SequenceOrder {
			return Configurationf("steps %s and %s of %s share sequence order %d",
				steps[i-1].StepName, step.StepName, workflowType, step.SequenceOrder)
		}
		if step.TimeLimitHours != nil && *step.TimeLimitHours <= 0 {
			return Configurationf("step %s of %s has a non-positive time limit", step.StepName, workflowType)
		}
	}
	return nil
}
