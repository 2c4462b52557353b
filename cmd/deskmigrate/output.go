package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/mirajehossain/deskmigrate/internal/dialect"
	"github.com/mirajehossain/deskmigrate/internal/migrator"
)

type statusItem struct {
	Version   string `json:"version"`
	Name      string `json:"name"`
	Checksum  string `json:"checksum"`
	Status    string `json:"status"` // success|failed|pending|orphaned
	AppliedAt string `json:"applied_at,omitempty"`
}

func statusItems(plan *migrator.Plan) []statusItem {
	out := make([]statusItem, 0, len(plan.All)+len(plan.Orphans))
	for _, m := range plan.All {
		it := statusItem{Version: m.Version, Name: m.Name, Checksum: m.Checksum, Status: "pending"}
		if row, ok := plan.Applied[migrator.Key(m.Version, m.Name)]; ok {
			it.Status = row.Status
			it.AppliedAt = row.AppliedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		out = append(out, it)
	}
	for _, row := range plan.Orphans {
		out = append(out, statusItem{
			Version: row.Version, Name: row.Name, Checksum: row.Checksum, Status: "orphaned",
			AppliedAt: row.AppliedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return out
}

func printStatus(w io.Writer, plan *migrator.Plan, asJSON bool) error {
	items := statusItems(plan)
	if asJSON {
		return json.NewEncoder(w).Encode(items)
	}
	paint := map[string]*color.Color{
		migrator.StatusSuccess: color.New(color.FgGreen),
		migrator.StatusFailed:  color.New(color.FgRed, color.Bold),
		"pending":              color.New(color.FgYellow),
		"orphaned":             color.New(color.FgMagenta),
	}
	for _, it := range items {
		sum := it.Checksum
		if len(sum) > 12 {
			sum = sum[:12]
		}
		fmt.Fprintf(w, "%s %-50s %s %s\n", it.Version, it.Name, paint[it.Status].Sprintf("%-8s", it.Status), sum)
	}
	return nil
}

type planItem struct {
	ID         string   `json:"id"`
	Statements []string `json:"statements"`
}

func printPlan(ctx context.Context, w io.Writer, pending []migrator.Migration, d dialect.Dialect, asJSON bool) error {
	items := make([]planItem, 0, len(pending))
	for _, m := range pending {
		up, _, err := migrator.Record(ctx, m.Descriptor, d)
		if err != nil {
			return err
		}
		items = append(items, planItem{ID: m.Descriptor.ID, Statements: up.Statements})
	}
	if asJSON {
		return json.NewEncoder(w).Encode(items)
	}
	head := color.New(color.FgCyan, color.Bold)
	for _, it := range items {
		head.Fprintf(w, "-- %s\n", it.ID)
		for _, stmt := range it.Statements {
			fmt.Fprintf(w, "%s;\n", stmt)
		}
	}
	return nil
}
