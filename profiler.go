package rtbvh

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Profiler records the last duration of named scopes and a set of
// counters. Scopes may overlap across goroutines; each Scope call keeps its
// own start time.
type Profiler struct {
	mu     sync.Mutex
	scopes map[string]time.Duration
	calls  map[string]int
	counts map[string]int
	order  []string
}

func NewProfiler() *Profiler {
	return &Profiler{
		scopes: make(map[string]time.Duration),
		calls:  make(map[string]int),
		counts: make(map[string]int),
	}
}

// Scope starts timing name and returns the function that stops it.
func (p *Profiler) Scope(name string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.scopes[name]; !ok {
			p.order = append(p.order, name)
		}
		p.scopes[name] = d
		p.calls[name]++
	}
}

func (p *Profiler) SetCount(name string, count int) {
	p.mu.Lock()
	p.counts[name] = count
	p.mu.Unlock()
}

func (p *Profiler) AddCount(name string, delta int) {
	p.mu.Lock()
	p.counts[name] += delta
	p.mu.Unlock()
}

// Stats is a point-in-time copy of the profiler state.
type Stats struct {
	Last   map[string]time.Duration
	Calls  map[string]int
	Counts map[string]int
	order  []string
}

func (p *Profiler) Snapshot() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		Last:   make(map[string]time.Duration, len(p.scopes)),
		Calls:  make(map[string]int, len(p.calls)),
		Counts: make(map[string]int, len(p.counts)),
		order:  append([]string(nil), p.order...),
	}
	for k, v := range p.scopes {
		s.Last[k] = v
	}
	for k, v := range p.calls {
		s.Calls[k] = v
	}
	for k, v := range p.counts {
		s.Counts[k] = v
	}
	return s
}

func (s Stats) String() string {
	var sb strings.Builder

	sb.WriteString("Timings (last):\n")
	for _, name := range s.order {
		ms := float64(s.Last[name].Microseconds()) / 1000.0
		sb.WriteString(fmt.Sprintf("  %-15s: %.2f ms (%d calls)\n", name, ms, s.Calls[name]))
	}

	sb.WriteString("\nStats:\n")
	keys := make([]string, 0, len(s.Counts))
	for k := range s.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %-15s: %d\n", k, s.Counts[k]))
	}
	return sb.String()
}
