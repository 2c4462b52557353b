package migrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Migration is a registered descriptor paired with its current checksum.
type Migration struct {
	Descriptor Descriptor
	Version    string
	Name       string
	Checksum   string
}

type Plan struct {
	Pending []Migration // to apply in order
	Applied map[string]Row
	All     []Migration // all registered
	// Orphans are history rows whose descriptor is no longer registered.
	Orphans []Row
}

var (
	ErrDrift = errors.New("checksum drift detected")
)

// Discover resolves every registered descriptor into a Migration, in order.
func Discover(ctx context.Context, reg *Registry) ([]Migration, error) {
	descs := reg.All()
	all := make([]Migration, 0, len(descs))
	for _, d := range descs {
		chk, err := Checksum(ctx, d)
		if err != nil {
			return nil, err
		}
		all = append(all, Migration{Descriptor: d, Version: d.Version(), Name: d.Name(), Checksum: chk})
	}
	return all, nil
}

// DiscoverAndPlan compares registered descriptors with the history table and
// decides which to run. Out-of-order applies are supported: anything not
// (status=success) is considered pending. On drift the plan is still
// returned, alongside an ErrDrift error, so that repair can act on it.
func DiscoverAndPlan(ctx context.Context, reg *Registry, st *Storage) (*Plan, error) {
	all, err := Discover(ctx, reg)
	if err != nil {
		return nil, err
	}
	applied, err := st.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(all))
	pending := make([]Migration, 0, len(all))
	var drifted []string
	for _, m := range all {
		k := Key(m.Version, m.Name)
		known[k] = true
		if row, ok := applied[k]; ok {
			// If recorded success but checksum differs => drift
			if row.Status == StatusSuccess && !strings.EqualFold(row.Checksum, m.Checksum) {
				drifted = append(drifted, fmt.Sprintf("%s (db=%s current=%s)", m.Descriptor.ID, row.Checksum, m.Checksum))
				continue
			}
			// If failed previously, retry
			if row.Status == StatusFailed {
				pending = append(pending, m)
			}
			continue
		}
		pending = append(pending, m)
	}
	var orphans []Row
	for k, row := range applied {
		if !known[k] {
			orphans = append(orphans, row)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].ExecutionOrder < orphans[j].ExecutionOrder })
	plan := &Plan{Pending: pending, Applied: applied, All: all, Orphans: orphans}
	if len(drifted) > 0 {
		return plan, fmt.Errorf("%w: %s", ErrDrift, strings.Join(drifted, "; "))
	}
	return plan, nil
}

// Lookup indexes the plan's migrations by Key.
func (p *Plan) Lookup() map[string]Migration {
	out := make(map[string]Migration, len(p.All))
	for _, m := range p.All {
		out[Key(m.Version, m.Name)] = m
	}
	return out
}
