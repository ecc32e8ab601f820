package sources

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

type Registry struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewRegistry() *Registry {
	return &Registry{profiles: map[string]Profile{}}
}

// Register adds a profile and fails when the name is already taken.
func (r *Registry) Register(profile Profile) error {
	if err := profile.Normalize(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[profile.Name]; exists {
		return fmt.Errorf("profile %q already registered", profile.Name)
	}

	r.profiles[profile.Name] = profile
	return nil
}

// Put adds or replaces a profile.
func (r *Registry) Put(profile Profile) error {
	if err := profile.Normalize(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.profiles[profile.Name] = profile
	return nil
}

// Get resolves a profile by name, host or any url on that host.
func (r *Registry) Get(key string) (Profile, bool) {
	name := strings.ToLower(strings.TrimSpace(key))
	if name == "" {
		return Profile{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if profile, ok := r.profiles[name]; ok {
		return profile, true
	}

	host := hostFromKey(name)
	if host == "" {
		return Profile{}, false
	}
	for _, profile := range r.profiles {
		if profile.Host() == host {
			return profile, true
		}
	}

	return Profile{}, false
}

func (r *Registry) List() []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]Profile, 0, len(r.profiles))
	for _, profile := range r.profiles {
		items = append(items, profile)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})

	return items
}

func hostFromKey(key string) string {
	candidate := key
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	parsed, err := url.Parse(candidate)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}
