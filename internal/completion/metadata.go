// Package completion holds the flag metadata used to complete flag values in
// the shell.
package completion

import (
	"strings"

	"github.com/chmouel/lazybranch/internal/models"
	"github.com/chmouel/lazybranch/internal/theme"
)

// FlagInfo contains metadata about a command-line flag for completion generation.
type FlagInfo struct {
	Name        string   // Flag name without dashes
	Description string   // Human-readable description
	HasValue    bool     // true for string flags, false for bool flags
	ValueHint   string   // Hint for value type (e.g., "DIR", "PATH", "NAME")
	Values      []string // Enumerated values for completion (e.g., theme names)
}

// GetFlags returns metadata for the lazybranch flags that take a value.
func GetFlags() []FlagInfo {
	filters := make([]string, 0, len(models.FilterModes))
	for _, mode := range models.FilterModes {
		filters = append(filters, string(mode))
	}

	return []FlagInfo{
		{
			Name:        "repo",
			Description: "Repository to operate on",
			HasValue:    true,
			ValueHint:   "DIR",
		},
		{
			Name:        "debug-log",
			Description: "Path to debug log file",
			HasValue:    true,
			ValueHint:   "PATH",
		},
		{
			Name:        "config-file",
			Description: "Path to configuration file",
			HasValue:    true,
			ValueHint:   "FILE",
		},
		{
			Name:        "theme",
			Description: "Override UI theme",
			HasValue:    true,
			ValueHint:   "NAME",
			Values:      theme.AvailableThemes(),
		},
		{
			Name:        "scope",
			Description: "Side(s) to delete",
			HasValue:    true,
			ValueHint:   "SCOPE",
			Values:      []string{"local", "remote", "both"},
		},
		{
			Name:        "only",
			Description: "Only list branches matching a filter",
			HasValue:    true,
			ValueHint:   "FILTER",
			Values:      filters,
		},
		{
			Name:        "sort",
			Description: "Sort order",
			HasValue:    true,
			ValueHint:   "ORDER",
			Values:      []string{"name", "date"},
		},
	}
}

// ValuesFor returns the enumerated values of the flag named by arg, which
// may carry its leading dashes. Flags without enumerated values return nil.
func ValuesFor(arg string) []string {
	name := strings.TrimLeft(arg, "-")
	switch name {
	case "t":
		name = "theme"
	case "s":
		name = "scope"
	}
	for _, flag := range GetFlags() {
		if flag.Name == name {
			return flag.Values
		}
	}
	return nil
}
