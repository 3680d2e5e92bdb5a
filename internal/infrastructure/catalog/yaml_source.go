package catalog

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/workflow"
)

// File is the on-disk layout of the step catalog
type File struct {
	Workflows []WorkflowDef    `yaml:"workflows"`
	Routes    []workflow.Route `yaml:"routes"`
}

// WorkflowDef lists the steps of one workflow type in order
type WorkflowDef struct {
	Type  string    `yaml:"type"`
	Steps []StepDef `yaml:"steps"`
}

type StepDef struct {
	Name string `yaml:"name"`
	Role string `yaml:"role"`
	// Sequence defaults to the step's position, starting at 1.
	Sequence       int   `yaml:"sequence,omitempty"`
	TimeLimitHours *int  `yaml:"time_limit_hours,omitempty"`
	Active         *bool `yaml:"active,omitempty"`
}

// Parse decodes catalog YAML
func Parse(data []byte) (*File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("catalog: file is empty")
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return &f, nil
}

// StepConfigs flattens the file into step configuration rows
func (f *File) StepConfigs() []entity.StepConfig {
	var configs []entity.StepConfig
	for _, wf := range f.Workflows {
		workflowType := strings.ToUpper(strings.TrimSpace(wf.Type))
		for i, s := range wf.Steps {
			seq := s.Sequence
			if seq == 0 {
				seq = i + 1
			}
			configs = append(configs, entity.StepConfig{
				WorkflowType:   workflowType,
				StepName:       strings.ToUpper(strings.TrimSpace(s.Name)),
				ApproverRole:   strings.ToUpper(strings.TrimSpace(s.Role)),
				SequenceOrder:  seq,
				TimeLimitHours: s.TimeLimitHours,
				IsActive:       s.Active == nil || *s.Active,
			})
		}
	}
	return configs
}

// FileSource reads the catalog file on every Load, so edits are picked up
// by a reload without a restart.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Path() string { return s.path }

func (s *FileSource) read() (*File, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", s.path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", s.path, err)
	}
	return f, nil
}

func (s *FileSource) Load(ctx context.Context) ([]entity.StepConfig, error) {
	f, err := s.read()
	if err != nil {
		return nil, err
	}
	return f.StepConfigs(), nil
}

// Routes returns the file's branching table, or the built-in table when
// the file defines none.
func (s *FileSource) Routes() ([]workflow.Route, error) {
	f, err := s.read()
	if err != nil {
		return nil, err
	}
	if len(f.Routes) == 0 {
		return workflow.DefaultRoutes(), nil
	}
	routes := make([]workflow.Route, len(f.Routes))
	for i, r := range f.Routes {
		routes[i] = workflow.Route{
			WorkflowType: strings.ToUpper(strings.TrimSpace(r.WorkflowType)),
			From:         strings.ToUpper(strings.TrimSpace(r.From)),
			When:         strings.TrimSpace(r.When),
			To:           strings.ToUpper(strings.TrimSpace(r.To)),
		}
	}
	return routes, nil
}

var _ port.CatalogSource = (*FileSource)(nil)
var _ port.RouteSource = (*FileSource)(nil)
