package migrator

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/mirajehossain/deskmigrate/internal/checksum"
	"github.com/mirajehossain/deskmigrate/internal/schema"
)

var idRe = regexp.MustCompile(`^(\d{14})-([A-Za-z0-9_\-]+)$`)

// MigrateFunc mutates the schema through q.
type MigrateFunc func(ctx context.Context, q schema.QueryInterface) error

// Descriptor is one reversible schema change. Down must undo exactly what
// Up did.
type Descriptor struct {
	ID   string // YYYYMMDDHHMMSS-description
	Up   MigrateFunc
	Down MigrateFunc
}

// ParseID splits id into its version timestamp and name.
func ParseID(id string) (version, name string, err error) {
	m := idRe.FindStringSubmatch(id)
	if m == nil {
		return "", "", fmt.Errorf("invalid descriptor id %q: want YYYYMMDDHHMMSS-description", id)
	}
	if _, err := time.Parse("20060102150405", m[1]); err != nil {
		return "", "", fmt.Errorf("invalid descriptor id %q: %w", id, err)
	}
	return m[1], m[2], nil
}

func (d Descriptor) Version() string {
	v, _, _ := ParseID(d.ID)
	return v
}

func (d Descriptor) Name() string {
	_, n, _ := ParseID(d.ID)
	return n
}

func (d Descriptor) Key() string { return Key(d.Version(), d.Name()) }

// Record runs up then down against a recorder and returns what both asked for.
func Record(ctx context.Context, d Descriptor, dialect schema.Dialect) (up, down *schema.Recorder, err error) {
	up = schema.NewRecorder(dialect)
	if err := d.Up(ctx, up); err != nil {
		return nil, nil, fmt.Errorf("record up %s: %w", d.ID, err)
	}
	down = schema.NewRecorder(dialect).Predict(up.Ops)
	if err := d.Down(ctx, down); err != nil {
		return nil, nil, fmt.Errorf("record down %s: %w", d.ID, err)
	}
	return up, down, nil
}

// Checksum fingerprints the mutations d declares. It does not depend on the
// dialect, so history written by one engine verifies against another.
func Checksum(ctx context.Context, d Descriptor) (string, error) {
	up, down, err := Record(ctx, d, nil)
	if err != nil {
		return "", err
	}
	lines := append([]string{"up"}, up.Lines()...)
	lines = append(lines, "down")
	lines = append(lines, down.Lines()...)
	return checksum.Lines(lines...), nil
}

// Registry holds descriptors keyed by id.
type Registry struct {
	mu   sync.Mutex
	byID map[string]Descriptor
}

func NewRegistry() *Registry { return &Registry{byID: map[string]Descriptor{}} }

// Register adds d. It panics on a malformed or duplicate id, or a missing
// direction: registration happens from init and such a descriptor must never ship.
func (r *Registry) Register(d Descriptor) {
	if _, _, err := ParseID(d.ID); err != nil {
		panic(err)
	}
	if d.Up == nil || d.Down == nil {
		panic(fmt.Sprintf("descriptor %s must declare both up and down", d.ID))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v := d.Version()
	for id, other := range r.byID {
		if other.Version() == v {
			panic(fmt.Sprintf("descriptor %s reuses version %s of %s", d.ID, v, id))
		}
	}
	r.byID[d.ID] = d
}

// All returns every descriptor ascending by version, then name.
func (r *Registry) All() []Descriptor {
	r.mu.Lock()
	out := make([]Descriptor, 0, len(r.byID))
	for _, d := range r.byID {
		out = append(out, d)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		vi, vj := out[i].Version(), out[j].Version()
		if vi == vj {
			return out[i].Name() < out[j].Name()
		}
		return vi < vj
	})
	return out
}

func (r *Registry) Get(id string) (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	return d, ok
}
