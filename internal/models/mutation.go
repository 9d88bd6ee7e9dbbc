package models

// Mutation is one batch of structural changes observed on the live page.
// Added holds outer HTML of inserted elements; Removed holds the
// data-soldby-node keys of elements that left the document.
type Mutation struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Empty reports whether the batch carries no changes
func (m Mutation) Empty() bool {
	return len(m.Added) == 0 && len(m.Removed) == 0
}
