package action

// Composite is an ordered registry of actions. The first registered action
// accepting a resource handles it, so archive actions are registered before
// the actions for the resources they contain.
type Composite struct {
	actions []Action
}

// NewComposite creates a composite holding the given actions.
func NewComposite(actions ...Action) *Composite {
	c := &Composite{}
	c.Add(actions...)
	return c
}

// Add appends actions to the registry.
func (c *Composite) Add(actions ...Action) {
	c.actions = append(c.actions, actions...)
}

// Actions returns the registered actions in order.
func (c *Composite) Actions() []Action {
	return append([]Action(nil), c.actions...)
}

// AcceptAction returns the first action accepting the resource, or nil.
func (c *Composite) AcceptAction(resourceName string) Action {
	for _, a := range c.actions {
		if a.Accepts(resourceName) {
			return a
		}
	}
	return nil
}
