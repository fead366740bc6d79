package service

import (
	"errors"
	"fmt"

	"github.com/kalebecaldas/zorahapp/internal/model"
	"github.com/kalebecaldas/zorahapp/internal/pkg/cache"
	"github.com/kalebecaldas/zorahapp/internal/repository"
	"github.com/kalebecaldas/zorahapp/internal/workflow"
)

// ErrInvalidDefinition wraps graph validation failures on create/update.
var ErrInvalidDefinition = errors.New("invalid workflow definition")

const activeGraphCacheKey = "workflow:active_graph"

type activeGraph struct {
	Workflow *model.Workflow
	Graph    *workflow.Graph
}

type WorkflowService struct {
	workflows repository.WorkflowRepository
	states    repository.ConversationStateRepository
	cache     *cache.Cache
}

func NewWorkflowService(workflows repository.WorkflowRepository, states repository.ConversationStateRepository, c *cache.Cache) *WorkflowService {
	return &WorkflowService{workflows: workflows, states: states, cache: c}
}

type SaveWorkflowRequest struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Definition string `json:"definition"`
}

func (s *WorkflowService) Create(req SaveWorkflowRequest) (*model.Workflow, error) {
	if _, err := workflow.ParseDefinition([]byte(req.Definition)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	wf := &model.Workflow{
		Name:       req.Name,
		Kind:       req.Kind,
		Definition: req.Definition,
	}
	if wf.Kind == "" {
		wf.Kind = "general"
	}
	if err := s.workflows.Create(wf); err != nil {
		return nil, err
	}
	return wf, nil
}

func (s *WorkflowService) Update(id uint, req SaveWorkflowRequest) (*model.Workflow, error) {
	wf, err := s.workflows.Get(id)
	if err != nil {
		return nil, err
	}
	if req.Definition != "" {
		if _, err := workflow.ParseDefinition([]byte(req.Definition)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
		}
		wf.Definition = req.Definition
	}
	if req.Name != "" {
		wf.Name = req.Name
	}
	if req.Kind != "" {
		wf.Kind = req.Kind
	}
	if err := s.workflows.Save(wf); err != nil {
		return nil, err
	}
	s.cache.Delete(activeGraphCacheKey)
	return wf, nil
}

func (s *WorkflowService) List() ([]model.Workflow, error) {
	return s.workflows.List()
}

func (s *WorkflowService) Get(id uint) (*model.Workflow, error) {
	return s.workflows.Get(id)
}

func (s *WorkflowService) Delete(id uint) error {
	wf, err := s.workflows.Get(id)
	if err != nil {
		return err
	}
	if wf.IsActive {
		return fmt.Errorf("cannot delete the active workflow")
	}
	return s.workflows.Delete(id)
}

// Activate makes one workflow the effective default and invalidates
// the cached active graph.
func (s *WorkflowService) Activate(id uint) error {
	if err := s.workflows.Activate(id); err != nil {
		return err
	}
	s.cache.Delete(activeGraphCacheKey)
	return nil
}

// ActiveGraph returns the active workflow with its decoded graph,
// cached for the configured TTL since every inbound message needs it.
func (s *WorkflowService) ActiveGraph() (*model.Workflow, *workflow.Graph, error) {
	if v, ok := s.cache.Get(activeGraphCacheKey); ok {
		ag := v.(*activeGraph)
		return ag.Workflow, ag.Graph, nil
	}

	wf, err := s.workflows.GetActive()
	if err != nil {
		return nil, nil, err
	}
	g, err := workflow.ParseDefinition([]byte(wf.Definition))
	if err != nil {
		return nil, nil, fmt.Errorf("active workflow %d: %w", wf.ID, err)
	}
	s.cache.Set(activeGraphCacheKey, &activeGraph{Workflow: wf, Graph: g})
	return wf, g, nil
}

// GraphByID loads and decodes a specific workflow's graph.
func (s *WorkflowService) GraphByID(id uint) (*model.Workflow, *workflow.Graph, error) {
	wf, err := s.workflows.Get(id)
	if err != nil {
		return nil, nil, err
	}
	g, err := workflow.ParseDefinition([]byte(wf.Definition))
	if err != nil {
		return nil, nil, fmt.Errorf("workflow %d: %w", wf.ID, err)
	}
	return wf, g, nil
}

// FindByKind returns the workflow the router should start for an
// intent (scheduling, registration), preferring an active one.
func (s *WorkflowService) FindByKind(kind string) (*model.Workflow, *workflow.Graph, error) {
	wfs, err := s.workflows.List()
	if err != nil {
		return nil, nil, err
	}
	var found *model.Workflow
	for i := range wfs {
		if wfs[i].Kind != kind {
			continue
		}
		if wfs[i].IsActive {
			found = &wfs[i]
			break
		}
		if found == nil {
			found = &wfs[i]
		}
	}
	if found == nil {
		return nil, nil, repository.ErrNotFound
	}
	g, err := workflow.ParseDefinition([]byte(found.Definition))
	if err != nil {
		return nil, nil, fmt.Errorf("workflow %d: %w", found.ID, err)
	}
	return found, g, nil
}
