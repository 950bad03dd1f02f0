package model

// Changeset is a batch of record writes that a store applies all-or-nothing.
type Changeset struct {
	Phases        []Phase
	DeletedPhases []string
	Employees     []Employee
	Projects      []Project
}

// Empty reports whether the changeset carries no writes.
func (c Changeset) Empty() bool {
	return len(c.Phases) == 0 && len(c.DeletedPhases) == 0 && len(c.Employees) == 0 && len(c.Projects) == 0
}

// Size returns the number of records written or deleted.
func (c Changeset) Size() int {
	return len(c.Phases) + len(c.DeletedPhases) + len(c.Employees) + len(c.Projects)
}
