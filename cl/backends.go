package cl

import (
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Opener opens a back end. It is called at most once per registered back end, the result is cached.
type Opener func() (API, error)

var (
	// BackendAliases maps back end names (lowercase) to the canonical registered name.
	//
	// You can add names during initialization, but not after it.
	BackendAliases = map[string]string{
		"simulator": "sim",
		"cl":        "opencl",
		"ocl":       "opencl",
	}

	// openers and openedBackends are protected by muBackends.
	openers        = make(map[string]Opener)
	openedBackends = make(map[string]API)
	muBackends     sync.Mutex
)

func canonicalBackendName(name string) string {
	name = strings.ToLower(name)
	if canonical, ok := BackendAliases[name]; ok {
		return canonical
	}
	return name
}

// RegisterBackend registers a back end opener under the given name. Typically called from the init() function
// of the back end package, see sub-packages `simulator` and `opencl`.
//
// Registering the same name twice replaces the opener, but not an already opened back end.
func RegisterBackend(name string, opener Opener) {
	muBackends.Lock()
	defer muBackends.Unlock()
	name = canonicalBackendName(name)
	if _, found := openers[name]; found {
		klog.Warningf("cl back end %q registered more than once, using the last registration", name)
	}
	openers[name] = opener
}

// GetBackend returns the back end registered with the given name (or one of its aliases), opening it on first use.
//
// Opened back ends are singletons: GetBackend returns the same API if called again with the same name.
func GetBackend(name string) (API, error) {
	muBackends.Lock()
	defer muBackends.Unlock()
	canonical := canonicalBackendName(name)
	if api, found := openedBackends[canonical]; found {
		return api, nil
	}
	opener, found := openers[canonical]
	if !found {
		return nil, errors.Errorf("unknown cl back end %q (canonical name %q), registered back ends: %v",
			name, canonical, backendNamesLocked())
	}
	api, err := opener()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to open cl back end %q", canonical)
	}
	klog.V(1).Infof("opened cl back end %q", canonical)
	openedBackends[canonical] = api
	return api, nil
}

// Backends returns the sorted names of the registered back ends. They are not opened.
func Backends() []string {
	muBackends.Lock()
	defer muBackends.Unlock()
	return backendNamesLocked()
}

func backendNamesLocked() []string {
	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
