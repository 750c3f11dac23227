// Package state holds the plain UI state shared by the app model.
package state

import (
	"github.com/chmouel/lazybranch/internal/models"
)

// ViewState holds UI-related state for the model.
type ViewState struct {
	ShowingSearch bool
	Filter        models.FilterMode
	Query         string
	SortByDate    bool
	WindowWidth   int
	WindowHeight  int
}

// NextFilter moves to the next filter mode, wrapping around. A negative step
// moves backwards.
func (v *ViewState) NextFilter(step int) {
	modes := models.FilterModes
	idx := 0
	for i, mode := range modes {
		if mode == v.Filter {
			idx = i
			break
		}
	}
	idx = ((idx+step)%len(modes) + len(modes)) % len(modes)
	v.Filter = modes[idx]
}
