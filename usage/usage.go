// Package usage keeps best-effort tool usage counters. Nothing in the tools
// reads these numbers back; a sink that fails only costs the statistics.
package usage

import (
	"context"
	"slices"
	"time"
)

// Snapshot is a point-in-time view of the usage data.
type Snapshot struct {
	Visits     map[string]int64 `json:"tool_usage"`
	KnownTools []string         `json:"known_tools"`
	LastVisit  time.Time        `json:"last_visit"`
}

// Sink stores usage data.
type Sink interface {
	// RecordVisit counts one visit of tool.
	RecordVisit(ctx context.Context, tool string) error
	// SyncKnownTools replaces the known tool list with ids and returns the
	// ids that were not known before.
	SyncKnownTools(ctx context.Context, ids []string) ([]string, error)
	Snapshot(ctx context.Context) (Snapshot, error)
	Close() error
}

// Discard is a Sink that stores nothing.
type Discard struct{}

func (Discard) RecordVisit(context.Context, string) error { return nil }
func (Discard) SyncKnownTools(context.Context, []string) ([]string, error) {
	return nil, nil
}
func (Discard) Snapshot(context.Context) (Snapshot, error) {
	return Snapshot{Visits: map[string]int64{}}, nil
}
func (Discard) Close() error { return nil }

// newTools returns the ids in current that are missing from known.
func newTools(known, current []string) []string {
	var fresh []string
	for _, id := range current {
		if !slices.Contains(known, id) {
			fresh = append(fresh, id)
		}
	}
	return fresh
}
