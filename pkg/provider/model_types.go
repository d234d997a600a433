package provider

import (
	"context"
	"fmt"
	"sort"
)

// ModelInfo is a model advertised by a provider.
type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// ListModels returns the models the provider advertises, sorted by ID.
func (p *Provider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	list, err := p.Client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s models: %w", GetProviderDisplayName(p.Name), err)
	}

	models := make([]ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, ModelInfo{ID: m.ID, OwnedBy: m.OwnedBy})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}
