package domain

// EditState is the feed's single edit slot: either NotEditing or Editing.
type EditState interface {
	isEditState()
}

// NotEditing means no review is staged for editing.
type NotEditing struct{}

// Editing holds a snapshot of the review being edited and its feed position at the time.
type Editing struct {
	Index    int
	Original Review
}

func (NotEditing) isEditState() {}
func (Editing) isEditState()    {}

// EditingReview returns the staged review when state is Editing.
func EditingReview(state EditState) (Editing, bool) {
	e, ok := state.(Editing)
	return e, ok
}
