// Package models defines the data objects shared across lazybranch packages.
package models

import (
	"fmt"
	"sort"
	"strings"
)

// Presence tells on which side(s) a branch exists.
type Presence int

// Presence values.
const (
	PresenceLocalOnly Presence = iota
	PresenceRemoteOnly
	PresenceBoth
)

// String returns the label used in tables and JSON output.
func (p Presence) String() string {
	switch p {
	case PresenceLocalOnly:
		return "local"
	case PresenceRemoteOnly:
		return "remote"
	case PresenceBoth:
		return "both"
	default:
		return "unknown"
	}
}

// HasLocal reports whether a local ref exists.
func (p Presence) HasLocal() bool {
	return p == PresenceLocalOnly || p == PresenceBoth
}

// HasRemote reports whether a remote-tracking ref exists.
func (p Presence) HasRemote() bool {
	return p == PresenceRemoteOnly || p == PresenceBoth
}

// Scope selects which side(s) of a branch a deletion targets.
type Scope int

// Scope values.
const (
	ScopeLocal Scope = iota
	ScopeRemote
	ScopeBoth
)

// String returns the scope keyword accepted by ParseScope.
func (s Scope) String() string {
	switch s {
	case ScopeLocal:
		return "local"
	case ScopeRemote:
		return "remote"
	case ScopeBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseScope converts a user supplied keyword into a Scope.
func ParseScope(value string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "local", "l":
		return ScopeLocal, nil
	case "remote", "r":
		return ScopeRemote, nil
	case "both", "b":
		return ScopeBoth, nil
	default:
		return ScopeLocal, fmt.Errorf("unknown scope %q, expected local, remote or both", value)
	}
}

// Accepts reports whether a branch with the given presence can be deleted
// under this scope.
func (s Scope) Accepts(p Presence) bool {
	switch s {
	case ScopeLocal:
		return p.HasLocal()
	case ScopeRemote:
		return p.HasRemote()
	case ScopeBoth:
		return p == PresenceBoth
	default:
		return false
	}
}

// CommitInfo captures the last commit of a branch as shown in listings.
type CommitInfo struct {
	Subject   string // truncated at classification time
	Timestamp int64  // committer date, unix seconds
	Relative  string // e.g. "3 days ago"
	Author    string
}

// BranchRecord is the classification of one branch. Records are values and are
// rebuilt on every refresh.
type BranchRecord struct {
	Name            string
	Presence        Presence
	IsCurrent       bool
	IsWorktreeBound bool
	IsProtected     bool
	IsMerged        bool
	LastCommit      CommitInfo
}

// Blocked reports whether the record can never be deleted, whatever the scope.
func (r BranchRecord) Blocked() bool {
	return r.IsProtected || r.IsCurrent || r.IsWorktreeBound
}

// StatusLabels returns the status column labels for the record.
func (r BranchRecord) StatusLabels() []string {
	var labels []string
	if r.IsCurrent {
		labels = append(labels, "Current")
	}
	if r.IsWorktreeBound {
		labels = append(labels, "Worktree")
	}
	if r.IsMerged {
		labels = append(labels, "Merged")
	}
	if r.IsProtected {
		labels = append(labels, "Protected")
	}
	return labels
}

// BranchMap maps branch names to their classification.
type BranchMap map[string]BranchRecord

// Sorted returns the records ordered by name, or by last commit date (newest
// first, ties by name) when byDate is set.
func (m BranchMap) Sorted(byDate bool) []BranchRecord {
	records := make([]BranchRecord, 0, len(m))
	for _, r := range m {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		if byDate && records[i].LastCommit.Timestamp != records[j].LastCommit.Timestamp {
			return records[i].LastCommit.Timestamp > records[j].LastCommit.Timestamp
		}
		return records[i].Name < records[j].Name
	})
	return records
}

// FilterMode narrows a branch listing.
type FilterMode string

// Filter modes, mirroring the branch tab of the worktree manager.
const (
	FilterAll      FilterMode = "all"
	FilterLocal    FilterMode = "local"
	FilterRemote   FilterMode = "remote"
	FilterMerged   FilterMode = "merged"
	FilterUnmerged FilterMode = "unmerged"
)

// FilterModes lists the modes in cycling order.
var FilterModes = []FilterMode{FilterAll, FilterLocal, FilterRemote, FilterMerged, FilterUnmerged}

// Label returns the human readable filter name.
func (f FilterMode) Label() string {
	switch f {
	case FilterLocal:
		return "Local Only"
	case FilterRemote:
		return "Remote Only"
	case FilterMerged:
		return "Merged"
	case FilterUnmerged:
		return "Unmerged"
	default:
		return "All"
	}
}

// Match reports whether a record passes the filter. "Local Only" keeps
// branches that have a local ref, "Remote Only" keeps remote-only branches.
func (f FilterMode) Match(r BranchRecord) bool {
	switch f {
	case FilterLocal:
		return r.Presence.HasLocal()
	case FilterRemote:
		return r.Presence == PresenceRemoteOnly
	case FilterMerged:
		return r.IsMerged
	case FilterUnmerged:
		return !r.IsMerged
	default:
		return true
	}
}

// ParseFilterMode converts a config value into a FilterMode.
func ParseFilterMode(value string) (FilterMode, bool) {
	v := FilterMode(strings.ToLower(strings.TrimSpace(value)))
	for _, mode := range FilterModes {
		if mode == v {
			return mode, true
		}
	}
	return FilterAll, false
}

// MatchQuery reports whether name contains query, ignoring case. A blank
// query matches every name.
func MatchQuery(name, query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	return query == "" || strings.Contains(strings.ToLower(name), query)
}

// Visible returns the sorted records that pass both the filter and the name
// query.
func (m BranchMap) Visible(filter FilterMode, query string, byDate bool) []BranchRecord {
	var rows []BranchRecord
	for _, r := range m.Sorted(byDate) {
		if filter.Match(r) && MatchQuery(r.Name, query) {
			rows = append(rows, r)
		}
	}
	return rows
}
