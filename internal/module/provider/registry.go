package provider

import (
	"sync"

	"github.com/genmedia/server/internal/domain/media"
	apperrors "github.com/genmedia/server/internal/shared/errors"
)

type registryKey struct {
	kind media.Kind
	name string
}

// Registry holds named provider instances per media kind and resolves which
// one services a request. It is populated once at startup and read
// concurrently afterwards.
type Registry struct {
	mu       sync.RWMutex
	index    map[registryKey]Provider
	order    map[media.Kind][]string
	defaults map[media.Kind]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		index:    make(map[registryKey]Provider),
		order:    make(map[media.Kind][]string),
		defaults: make(map[media.Kind]string),
	}
}

// Register inserts or replaces a provider. The last registration for a given
// (kind, name) wins; replacement keeps the original registration order slot.
func (r *Registry) Register(kind media.Kind, name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := registryKey{kind: kind, name: name}
	if _, exists := r.index[key]; !exists {
		r.order[kind] = append(r.order[kind], name)
	}
	r.index[key] = p
}

// SetDefault marks the provider used when a request names none.
func (r *Registry) SetDefault(kind media.Kind, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults[kind] = name
}

// Validate checks that every configured default resolves to a registered
// instance of its kind. Called once after startup registration.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for kind, name := range r.defaults {
		if _, ok := r.index[registryKey{kind: kind, name: name}]; !ok {
			return apperrors.InvalidConfig(
				"providers."+kind.String()+"_default",
				"default provider "+name+" is not registered")
		}
	}
	return nil
}

// Resolve returns the provider servicing a request. An empty name selects the
// configured default for the kind. An unknown name always errors with the
// registered alternatives; it never falls back to the default, so a config
// typo surfaces instead of being masked.
func (r *Registry) Resolve(kind media.Kind, name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lookup := name
	if lookup == "" {
		lookup = r.defaults[kind]
		if lookup == "" {
			return nil, apperrors.NotConfigured(kind.String(), "", r.order[kind])
		}
	}

	p, ok := r.index[registryKey{kind: kind, name: lookup}]
	if !ok {
		return nil, apperrors.NotConfigured(kind.String(), name, r.order[kind])
	}
	return p, nil
}

// List returns descriptors for all providers of a kind in registration order.
// Callers needing determinism across kinds must sort by name themselves.
func (r *Registry) List(kind media.Kind) []media.ProviderDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.order[kind]
	out := make([]media.ProviderDescriptor, 0, len(names))
	for _, name := range names {
		if p, ok := r.index[registryKey{kind: kind, name: name}]; ok {
			out = append(out, p.Describe())
		}
	}
	return out
}

// Names returns the registered provider names for a kind in registration order.
func (r *Registry) Names(kind media.Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order[kind]))
	copy(out, r.order[kind])
	return out
}

// ResolveImage resolves an image provider by name or default.
func (r *Registry) ResolveImage(name string) (ImageProvider, error) {
	p, err := r.Resolve(media.KindImage, name)
	if err != nil {
		return nil, err
	}
	ip, ok := p.(ImageProvider)
	if !ok {
		return nil, apperrors.NotConfigured(media.KindImage.String(), name, r.Names(media.KindImage))
	}
	return ip, nil
}

// ResolveVideo resolves a video provider by name or default.
func (r *Registry) ResolveVideo(name string) (VideoProvider, error) {
	p, err := r.Resolve(media.KindVideo, name)
	if err != nil {
		return nil, err
	}
	vp, ok := p.(VideoProvider)
	if !ok {
		return nil, apperrors.NotConfigured(media.KindVideo.String(), name, r.Names(media.KindVideo))
	}
	return vp, nil
}

// ResolveSpeech resolves a speech provider by name or default.
func (r *Registry) ResolveSpeech(name string) (SpeechProvider, error) {
	p, err := r.Resolve(media.KindSpeech, name)
	if err != nil {
		return nil, err
	}
	sp, ok := p.(SpeechProvider)
	if !ok {
		return nil, apperrors.NotConfigured(media.KindSpeech.String(), name, r.Names(media.KindSpeech))
	}
	return sp, nil
}

// ResolveMusic resolves a music provider by name or default.
func (r *Registry) ResolveMusic(name string) (MusicProvider, error) {
	p, err := r.Resolve(media.KindMusic, name)
	if err != nil {
		return nil, err
	}
	mp, ok := p.(MusicProvider)
	if !ok {
		return nil, apperrors.NotConfigured(media.KindMusic.String(), name, r.Names(media.KindMusic))
	}
	return mp, nil
}
