// Context provides the extended-state store owned by one interpreter.
//
// The interpreter serializes every cycle, so Context carries no lock: it is
// read and written only from the goroutine processing the current event.
// Snapshot hands out copies for anything that leaves that goroutine.
package primitives

// ContextReader is the read-only view given to guards.
type ContextReader interface {
	Get(key string) (any, bool)
	Snapshot() map[string]any
}

// Context is a string-keyed store of extended state.
type Context struct {
	data map[string]any
}

// NewContext creates a new Context with an empty map.
func NewContext() *Context {
	return &Context{data: make(map[string]any)}
}

// NewContextFrom creates a Context seeded with a shallow copy of initial.
func NewContextFrom(initial map[string]any) *Context {
	c := NewContext()
	for k, v := range initial {
		c.data[k] = v
	}
	return c
}

// Get retrieves a value by key.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.data[key]
	return v, ok
}

// Set stores a value by key.
func (c *Context) Set(key string, val any) {
	c.data[key] = val
}

// Delete removes a key-value pair.
func (c *Context) Delete(key string) {
	delete(c.data, key)
}

// Len returns the number of keys.
func (c *Context) Len() int {
	return len(c.data)
}

// Snapshot returns a shallow copy of the context data.
func (c *Context) Snapshot() map[string]any {
	snap := make(map[string]any, len(c.data))
	for k, v := range c.data {
		snap[k] = v
	}
	return snap
}
