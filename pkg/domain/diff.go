package domain

import "bytes"

// Changes reports which parts of the workflow differ between two states.
// Renderers use it to redraw only the panels that changed.
type Changes struct {
	Session      bool
	Selection    bool
	Analysis     bool
	Prompt       bool
	Regeneration bool
	Chain        bool
}

// Any reports whether anything changed.
func (c Changes) Any() bool {
	return c.Session || c.Selection || c.Analysis || c.Prompt || c.Regeneration || c.Chain
}

// Diff compares oldState and newState.
func Diff(oldState, newState State) Changes {
	var c Changes

	if len(oldState.session.Images) != len(newState.session.Images) {
		c.Session = true
	} else {
		for i := range oldState.session.Images {
			if oldState.session.Images[i].ID != newState.session.Images[i].ID ||
				(oldState.session.Images[i].File == nil) != (newState.session.Images[i].File == nil) {
				c.Session = true
				break
			}
		}
	}
	c.Selection = oldState.session.SelectedID != newState.session.SelectedID

	switch {
	case (oldState.analysis == nil) != (newState.analysis == nil):
		c.Analysis = true
	case oldState.analysis != nil:
		c.Analysis = *oldState.analysis != *newState.analysis
	}
	c.Prompt = oldState.Prompt() != newState.Prompt()

	switch {
	case (oldState.regeneration == nil) != (newState.regeneration == nil):
		c.Regeneration = true
	case oldState.regeneration != nil:
		c.Regeneration = oldState.regeneration.ID != newState.regeneration.ID ||
			!bytes.Equal(oldState.regeneration.ImageData, newState.regeneration.ImageData)
	}

	oldTip, newTip := "", ""
	oldLen, newLen := -1, -1
	if oldState.chain != nil {
		oldTip, oldLen = oldState.chain.Tip(), len(oldState.chain.Links)
	}
	if newState.chain != nil {
		newTip, newLen = newState.chain.Tip(), len(newState.chain.Links)
	}
	c.Chain = oldTip != newTip || oldLen != newLen

	return c
}
