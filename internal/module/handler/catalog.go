package handler

import (
	"github.com/genmedia/server/internal/domain/media"
	"github.com/genmedia/server/internal/module/provider"
	apperrors "github.com/genmedia/server/internal/shared/errors"
)

// CatalogService answers provider and model discovery queries.
type CatalogService struct {
	registry *provider.Registry
}

// NewCatalogService creates the catalog service.
func NewCatalogService(registry *provider.Registry) *CatalogService {
	return &CatalogService{registry: registry}
}

// ListProviders returns the descriptors of every provider registered for a
// kind, in registration order.
func (s *CatalogService) ListProviders(kind media.Kind) ([]media.ProviderDescriptor, error) {
	if !kind.IsValid() {
		return nil, apperrors.InvalidInput("unknown media kind " + string(kind))
	}
	return s.registry.List(kind), nil
}

// ListModels returns the models a provider exposes. An empty provider name
// uses the configured default for the kind.
func (s *CatalogService) ListModels(kind media.Kind, providerName string) ([]media.ModelInfo, error) {
	if !kind.IsValid() {
		return nil, apperrors.InvalidInput("unknown media kind " + string(kind))
	}
	p, err := s.registry.Resolve(kind, providerName)
	if err != nil {
		return nil, err
	}
	d := p.Describe()
	return d.Models, nil
}
