package registry

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hearthd/hearth/domain/entities"
)

// Pipelines stores the configured voice pipelines and tracks which one is
// preferred.
type Pipelines struct {
	mu        sync.RWMutex
	pipelines map[string]*entities.Pipeline
	order     []string
	preferred string
}

// NewPipelines creates an empty pipeline store
func NewPipelines() *Pipelines {
	return &Pipelines{pipelines: make(map[string]*entities.Pipeline)}
}

// Add registers a pipeline, assigning it an id when it has none. The first
// pipeline added becomes the preferred one.
func (p *Pipelines) Add(pipeline *entities.Pipeline) *entities.Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pipeline.ID == "" {
		pipeline.ID = uuid.NewString()
	}
	p.pipelines[pipeline.ID] = pipeline
	p.order = append(p.order, pipeline.ID)
	if p.preferred == "" {
		p.preferred = pipeline.ID
	}
	return pipeline
}

// SetPreferred marks a pipeline as the preferred one
func (p *Pipelines) SetPreferred(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.pipelines[id]; !ok {
		return fmt.Errorf("unknown pipeline: %s", id)
	}
	p.preferred = id
	return nil
}

// Get returns the pipeline with the given id, or the preferred pipeline
// when id is empty
func (p *Pipelines) Get(id string) (*entities.Pipeline, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if id == "" {
		id = p.preferred
	}
	pipeline, ok := p.pipelines[id]
	if !ok {
		return nil, fmt.Errorf("unknown pipeline: %s", id)
	}
	return pipeline, nil
}

// List returns all configured pipelines in registration order
func (p *Pipelines) List() []*entities.Pipeline {
	p.mu.RLock()
	defer p.mu.RUnlock()

	list := make([]*entities.Pipeline, 0, len(p.order))
	for _, id := range p.order {
		list = append(list, p.pipelines[id])
	}
	return list
}
