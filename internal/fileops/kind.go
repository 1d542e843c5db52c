// Package fileops is razor's file operation engine: recursive copy, cut, move,
// delete and duplicate of files and directory trees running on background
// goroutines, with conflicts resolved by the interactive user through a
// Resolver and progress exposed through a Tracker.
package fileops

// Kind identifies an operation.
type Kind int

const (
	Copy Kind = iota
	Cut
	Move
	Delete
	Duplicate
)

func (k Kind) String() string {
	switch k {
	case Copy:
		return "copy"
	case Cut:
		return "cut"
	case Move:
		return "move"
	case Delete:
		return "delete"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Label is the human-readable progress label shown while the operation runs.
func (k Kind) Label() string {
	switch k {
	case Copy:
		return "copying"
	case Cut, Move:
		return "moving"
	case Delete:
		return "deleting"
	case Duplicate:
		return "duplicating"
	default:
		return "working"
	}
}

// conflictKind is the kind recorded in a pending conflict. Cut and Duplicate
// write their destinations the same way Copy does.
func (k Kind) conflictKind() Kind {
	if k == Move {
		return Move
	}
	return Copy
}
