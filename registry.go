package orca

import (
	"fmt"
	"iter"
	"reflect"
	"sort"
	"sync"
)

// algorithm is a registered algorithm: its wire spec plus the function that
// computes it.
type algorithm struct {
	spec AlgorithmSpec
	fn   AlgorithmFunc
}

// registry holds a processor's registered algorithms. All methods are safe for
// concurrent use; registration normally happens before Serve, but the lock
// keeps late registration from racing with lookups done by execution requests.
type registry struct {
	mu sync.RWMutex

	// byFullName keys algorithms by Name_Version.
	byFullName map[string]*algorithm

	// byFnPointer maps function identities to full names so dependencies can
	// be declared by passing the dependency's function.
	byFnPointer map[uintptr]string

	// byWindow indexes full names by the triggering window type's full name.
	byWindow map[string][]string
}

func newRegistry() *registry {
	return &registry{
		byFullName:  make(map[string]*algorithm),
		byFnPointer: make(map[uintptr]string),
		byWindow:    make(map[string][]string),
	}
}

// fnPointer identifies a function value for dependency lookup.
func fnPointer(fn AlgorithmFunc) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// register validates and stores an algorithm. Dependencies must already be
// registered; the spec arrives with its dependency refs resolved by the caller.
func (r *registry) register(spec AlgorithmSpec, fn AlgorithmFunc) error {
	if err := ValidateAlgorithmName(spec.Name); err != nil {
		return err
	}
	if err := ValidateVersion(spec.Version); err != nil {
		return err
	}
	if err := ValidateWindowName(spec.WindowType.Name); err != nil {
		return err
	}
	if err := ValidateVersion(spec.WindowType.Version); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("%w: algorithm %s has no function", ErrInvalidArgument, spec.FullName())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fullName := spec.FullName()
	if _, ok := r.byFullName[fullName]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAlgorithm, fullName)
	}
	r.byFullName[fullName] = &algorithm{spec: spec, fn: fn}
	r.byFnPointer[fnPointer(fn)] = fullName
	windowFullName := spec.WindowType.FullName()
	r.byWindow[windowFullName] = append(r.byWindow[windowFullName], fullName)
	return nil
}

// lookup returns the algorithm registered under fullName.
func (r *registry) lookup(fullName string) (*algorithm, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byFullName[fullName]
	return a, ok
}

// lookupFn resolves a function value to the full name it was registered under.
func (r *registry) lookupFn(fn AlgorithmFunc) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byFnPointer[fnPointer(fn)]
	return name, ok
}

// addDependency appends a dependency edge from the algorithm registered as
// fullName to the algorithm registered as depFullName, refusing edges that
// would make the graph cyclic.
func (r *registry) addDependency(fullName, depFullName string, ref DependencyRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byFullName[fullName]
	if !ok {
		return fmt.Errorf("%w: algorithm %s is not registered", ErrInvalidDependency, fullName)
	}
	if _, ok := r.byFullName[depFullName]; !ok {
		return fmt.Errorf("%w: dependency %s is not registered", ErrInvalidDependency, depFullName)
	}
	if fullName == depFullName || r.reaches(depFullName, fullName) {
		return fmt.Errorf("%w: %s -> %s", ErrDependencyCycle, fullName, depFullName)
	}
	a.spec.Dependencies = append(a.spec.Dependencies, ref)
	return nil
}

// reaches reports whether to is reachable from from by following dependency
// edges. Caller holds the lock.
func (r *registry) reaches(from, to string) bool {
	seen := make(map[string]bool)
	stack := []string{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == to {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		a, ok := r.byFullName[cur]
		if !ok {
			continue
		}
		for _, dep := range a.spec.Dependencies {
			stack = append(stack, dep.Name+"_"+dep.Version)
		}
	}
	return false
}

// forWindow returns the specs of the algorithms triggered by the given window
// type, in registration order.
func (r *registry) forWindow(window WindowType) []AlgorithmSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fullNames := r.byWindow[window.FullName()]
	out := make([]AlgorithmSpec, 0, len(fullNames))
	for _, fullName := range fullNames {
		out = append(out, r.byFullName[fullName].spec)
	}
	return out
}

// specs returns the registered algorithm specs in full-name order, suitable
// for a registration announcement.
func (r *registry) specs() []AlgorithmSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AlgorithmSpec, 0, len(r.byFullName))
	for _, a := range r.byFullName {
		out = append(out, a.spec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FullName() < out[j].FullName()
	})
	return out
}

// all iterates registered algorithm specs in full-name order.
func (r *registry) all() iter.Seq[AlgorithmSpec] {
	return func(yield func(AlgorithmSpec) bool) {
		for _, spec := range r.specs() {
			if !yield(spec) {
				return
			}
		}
	}
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byFullName)
}
