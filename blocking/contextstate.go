package blocking

// A contextFrame holds the values written with Set by one operation and links
// to the frame of the operation that created it. Frames stay reachable from
// the frames of descendants after their own operation is destroyed.
type contextFrame struct {
	values  map[string]any
	parent  *contextFrame
	retired bool
}

func (f *contextFrame) lookup(key string) (any, bool) {
	for ; f != nil; f = f.parent {
		if value, ok := f.values[key]; ok {
			return value, true
		}
	}

	return nil, false
}

// skipRetired returns the nearest frame from f upwards that can still hold a
// value: a frame of a live operation, or one that has values.
func skipRetired(f *contextFrame) *contextFrame {
	for f != nil && f.retired && len(f.values) == 0 {
		f = f.parent
	}

	return f
}

// contextStore maps live operations to their frames.
type contextStore struct {
	frames     map[OperationID]*contextFrame
	withValues int
}

func newContextStore() contextStore {
	return contextStore{frames: make(map[OperationID]*contextFrame)}
}

func (c *contextStore) frame(id OperationID) *contextFrame {
	return c.frames[id]
}

// ensure returns the frame of id, creating a root frame if it has none.
func (c *contextStore) ensure(id OperationID) *contextFrame {
	f, ok := c.frames[id]
	if !ok {
		f = &contextFrame{}
		c.frames[id] = f
	}

	return f
}

// link gives id a new frame below parent.
func (c *contextStore) link(id OperationID, parent *contextFrame) {
	if parent != nil {
		parent.parent = skipRetired(parent.parent)
	}

	f := &contextFrame{parent: skipRetired(parent)}

	c.remove(id)
	c.frames[id] = f
}

func (c *contextStore) set(id OperationID, key string, value any) {
	f := c.ensure(id)

	if f.values == nil {
		f.values = make(map[string]any)
		c.withValues++
	}

	f.values[key] = value
}

func (c *contextStore) lookup(id OperationID, key string) (any, bool) {
	return c.frames[id].lookup(key)
}

// remove forgets the frame of id. Frames of descendants keep it.
func (c *contextStore) remove(id OperationID) {
	f, ok := c.frames[id]
	if !ok {
		return
	}

	f.retired = true
	c.unmap(id)
}

func (c *contextStore) unmap(id OperationID) {
	f, ok := c.frames[id]
	if !ok {
		return
	}

	if f.values != nil {
		c.withValues--
	}

	delete(c.frames, id)
}

// len returns the number of live operations that hold values.
func (c *contextStore) len() int {
	return c.withValues
}
