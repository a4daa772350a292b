package action

import "fmt"

// Changes records what one action did to one resource.
type Changes struct {
	// Action is the name of the action that produced the record.
	Action string
	// InputResource is the resource name given to the action.
	InputResource string
	// OutputResource is the resource name the output is written under.
	OutputResource string

	// Class is set by the class action.
	Class *ClassChanges
	// ServiceConfig is set by the service configuration action.
	ServiceConfig *ServiceConfigChanges
	// Container is set by the archive actions.
	Container *ContainerChanges
}

// HasResourceNameChange reports whether the output is written under a new
// name.
func (c *Changes) HasResourceNameChange() bool {
	return c.InputResource != c.OutputResource
}

// HasChanges reports whether the action rewrote anything.
func (c *Changes) HasChanges() bool {
	if c == nil {
		return false
	}
	if c.HasResourceNameChange() {
		return true
	}
	switch {
	case c.Class != nil:
		return c.Class.HasChanges()
	case c.ServiceConfig != nil:
		return c.ServiceConfig.HasChanges()
	case c.Container != nil:
		return c.Container.HasChanges()
	}
	return false
}

// Rename is a value before and after renaming.
type Rename struct {
	From string
	To   string
}

func (r Rename) String() string {
	return r.From + " -> " + r.To
}

// MemberChange records a field or method whose descriptor or generic
// signature was renamed.
type MemberChange struct {
	Name       string
	Descriptor Rename
	// Signature is zero when the member has no Signature attribute.
	Signature Rename
}

func (m MemberChange) String() string {
	return m.Name + " " + m.Descriptor.String()
}

// ClassChanges records the renames applied to a class file.
type ClassChanges struct {
	// InputClassName and OutputClassName are dotted class names.
	InputClassName  string
	OutputClassName string
	// InputSuperName and OutputSuperName are dotted class names, empty
	// when the class has no superclass.
	InputSuperName  string
	OutputSuperName string

	ModifiedInterfaces []Rename
	ModifiedFields     []MemberChange
	ModifiedMethods    []MemberChange
	// ModifiedConstants holds the renamed string constants.
	ModifiedConstants []Rename

	// RewrittenEntries counts the Utf8 constants whose value changed.
	RewrittenEntries int
}

// HasChanges reports whether any constant was rewritten.
func (c *ClassChanges) HasChanges() bool {
	return c.RewrittenEntries > 0
}

// HasClassNameChange reports whether the class itself was renamed.
func (c *ClassChanges) HasClassNameChange() bool {
	return c.InputClassName != c.OutputClassName
}

// ServiceConfigChanges records the renames applied to a service
// configuration file.
type ServiceConfigChanges struct {
	// ChangedLines counts the provider lines that were renamed.
	ChangedLines int
	// Diff is a unified diff of the content, empty when unchanged.
	Diff string
}

// HasChanges reports whether the content changed.
func (c *ServiceConfigChanges) HasChanges() bool {
	return c.ChangedLines > 0
}

// Disposition is what happened to an archive entry.
type Disposition int

const (
	// Unaccepted entries have no action for their resource type and are
	// copied through.
	Unaccepted Disposition = iota
	// Unselected entries have an action but are rejected by the selection
	// rule and are copied through.
	Unselected
	// Changed entries were transformed and differ from the input.
	Changed
	// Unchanged entries were transformed without any rename applying.
	Unchanged
	// Duplicate entries share an output name with an earlier entry and
	// are dropped.
	Duplicate
)

func (d Disposition) String() string {
	switch d {
	case Unaccepted:
		return "unaccepted"
	case Unselected:
		return "unselected"
	case Changed:
		return "changed"
	case Unchanged:
		return "unchanged"
	case Duplicate:
		return "duplicate"
	}
	return fmt.Sprintf("Disposition(%d)", int(d))
}

// Entry records the processing of one archive entry.
type Entry struct {
	Name        string
	OutputName  string
	Disposition Disposition
	// Action is the name of the accepting action, empty when unaccepted.
	Action string
	// Changes is the record of the accepting action, nil when the entry
	// was copied through or dropped.
	Changes *Changes
}

// ContainerChanges records the processing of every entry of an archive, in
// entry order.
type ContainerChanges struct {
	Entries []Entry
}

// HasChanges reports whether any entry was changed or dropped.
func (c *ContainerChanges) HasChanges() bool {
	for _, e := range c.Entries {
		if e.Disposition == Changed || e.Disposition == Duplicate {
			return true
		}
	}
	return false
}

func (c *ContainerChanges) names(keep func(e Entry) bool) []string {
	var names []string
	for _, e := range c.Entries {
		if keep(e) {
			names = append(names, e.Name)
		}
	}
	return names
}

func (c *ContainerChanges) kind(class bool, d Disposition) []string {
	return c.names(func(e Entry) bool {
		if e.Disposition != d || e.Changes == nil {
			return false
		}
		if class {
			return e.Changes.Class != nil
		}
		return e.Changes.ServiceConfig != nil
	})
}

// ChangedClasses returns the names of the class entries that changed.
func (c *ContainerChanges) ChangedClasses() []string {
	return c.kind(true, Changed)
}

// UnchangedClasses returns the names of the class entries that were
// transformed without change.
func (c *ContainerChanges) UnchangedClasses() []string {
	return c.kind(true, Unchanged)
}

// ChangedServiceConfigs returns the names of the service configuration
// entries that changed.
func (c *ContainerChanges) ChangedServiceConfigs() []string {
	return c.kind(false, Changed)
}

// UnchangedServiceConfigs returns the names of the service configuration
// entries that were transformed without change.
func (c *ContainerChanges) UnchangedServiceConfigs() []string {
	return c.kind(false, Unchanged)
}

// AdditionalResources returns the names of the entries no action accepted.
func (c *ContainerChanges) AdditionalResources() []string {
	return c.names(func(e Entry) bool { return e.Disposition == Unaccepted })
}

// Duplicates returns the names of the dropped duplicate entries.
func (c *ContainerChanges) Duplicates() []string {
	return c.names(func(e Entry) bool { return e.Disposition == Duplicate })
}

// Totals counts entries by disposition.
type Totals struct {
	Unaccepted int
	Unselected int
	Changed    int
	Unchanged  int
	Duplicate  int
}

// Add accumulates the counts of another Totals.
func (t *Totals) Add(o Totals) {
	t.Unaccepted += o.Unaccepted
	t.Unselected += o.Unselected
	t.Changed += o.Changed
	t.Unchanged += o.Unchanged
	t.Duplicate += o.Duplicate
}

// Entries returns the total number of entries counted.
func (t Totals) Entries() int {
	return t.Unaccepted + t.Unselected + t.Changed + t.Unchanged + t.Duplicate
}

// Totals counts the entries of the archive and of every nested archive.
func (c *ContainerChanges) Totals() Totals {
	var t Totals
	for _, e := range c.Entries {
		switch e.Disposition {
		case Unaccepted:
			t.Unaccepted++
		case Unselected:
			t.Unselected++
		case Changed:
			t.Changed++
		case Unchanged:
			t.Unchanged++
		case Duplicate:
			t.Duplicate++
		}
		if e.Changes != nil && e.Changes.Container != nil {
			t.Add(e.Changes.Container.Totals())
		}
	}
	return t
}
