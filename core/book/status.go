package book

import (
	"fmt"

	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
)

// Status is the save state of a book.
type Status int

// Status values.
const (
	StatusNone Status = iota
	StatusLoaded
	StatusNew
	StatusModified
	StatusDeleted
)

var statusNames = map[Status]string{
	StatusNone:     "none",
	StatusLoaded:   "loaded",
	StatusNew:      "new",
	StatusModified: "modified",
	StatusDeleted:  "deleted",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// NeedsSave reports whether the host has unsaved changes to persist.
func (s Status) NeedsSave() bool {
	return s == StatusNew || s == StatusModified
}

// Event is an operation that drives a status transition.
type Event string

// Events.
const (
	EventLoad   Event = "load"
	EventImport Event = "import"
	EventEdit   Event = "edit"
	EventDelete Event = "delete"
)

// transitions maps (from, event) to the resulting status.
var transitions = map[Status]map[Event]Status{
	// Books the host never loaded or imported are untracked; edits leave
	// them untracked.
	StatusNone: {
		EventLoad:   StatusLoaded,
		EventImport: StatusNew,
		EventEdit:   StatusNone,
		EventDelete: StatusDeleted,
	},
	StatusLoaded: {
		EventEdit:   StatusModified,
		EventDelete: StatusDeleted,
	},
	StatusNew: {
		EventEdit:   StatusNew,
		EventDelete: StatusDeleted,
	},
	StatusModified: {
		EventEdit:   StatusModified,
		EventDelete: StatusDeleted,
	},
}

// Next returns the status reached from s on ev.
func (s Status) Next(ev Event) (Status, error) {
	if to, ok := transitions[s][ev]; ok {
		return to, nil
	}
	return s, bserrors.NewValidation("status", fmt.Sprintf("cannot %s a book in state %s", ev, s))
}

// Status returns the book's current save state.
func (b *Book) Status() Status {
	return b.status
}

func (b *Book) transition(ev Event) error {
	to, err := b.status.Next(ev)
	if err != nil {
		return err
	}
	b.status = to
	return nil
}

// MarkLoaded records that the book came from the host's store.
func (b *Book) MarkLoaded() error { return b.transition(EventLoad) }

// MarkImported records that the book was created from a source.
func (b *Book) MarkImported() error { return b.transition(EventImport) }

// MarkEdited records a correction.
func (b *Book) MarkEdited() error { return b.transition(EventEdit) }

// MarkDeleted records that the host discarded the book.
func (b *Book) MarkDeleted() error { return b.transition(EventDelete) }
