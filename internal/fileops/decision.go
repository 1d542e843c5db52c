package fileops

import "fmt"

// Decision is the user's answer to a naming conflict.
type Decision int

const (
	Skip         Decision = iota // Leave the destination alone and omit the entry
	Replace                      // Delete the destination, then write the source
	RenameNextTo                 // Write the source under an auto-numbered sibling name
	Combine                      // Merge two directories entry by entry
)

func (d Decision) String() string {
	switch d {
	case Skip:
		return "skip"
	case Replace:
		return "replace"
	case RenameNextTo:
		return "rename"
	case Combine:
		return "combine"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Choices returns the decisions offered for a conflict. Combine is only
// offered when both sides are directories.
func Choices(dirConflict bool) []Decision {
	if dirConflict {
		return []Decision{Skip, Replace, RenameNextTo, Combine}
	}
	return []Decision{Skip, Replace, RenameNextTo}
}

// ValidFor reports whether d is one of Choices(dirConflict).
func (d Decision) ValidFor(dirConflict bool) bool {
	for _, c := range Choices(dirConflict) {
		if c == d {
			return true
		}
	}
	return false
}

// Answer is what the foreground returns for a prompt. ApplyToAll makes the
// task reuse Decision for its remaining conflicts of the same shape.
type Answer struct {
	Decision   Decision
	ApplyToAll bool
}
