package buffer

// Stack is the history of viewed buffers. It is owned by the event loop
// and is never touched from background tasks.
type Stack struct {
	items []*Buffer
}

func NewStack(root *Buffer) *Stack {
	return &Stack{items: []*Buffer{root}}
}

// Push snapshots the viewport of the current top and makes b the displayed
// buffer.
func (s *Stack) Push(b *Buffer) {
	if top := s.Top(); top != nil {
		top.SetFocus(top.Active().Viewport())
	}
	s.items = append(s.items, b)
}

// Pop discards the top buffer, cancels its tasks and restores the
// viewport of the one below. The root buffer is never popped.
func (s *Stack) Pop() (*Buffer, bool) {
	if len(s.items) <= 1 {
		return nil, false
	}
	last := len(s.items) - 1
	gone := s.items[last]
	s.items[last] = nil
	s.items = s.items[:last]
	gone.Close()

	top := s.items[len(s.items)-1]
	top.Active().Restore(top.Focus())
	return gone, true
}

func (s *Stack) Top() *Buffer {
	if len(s.items) == 0 {
		return nil
	}
	return s.items[len(s.items)-1]
}

func (s *Stack) Len() int {
	return len(s.items)
}

// CloseAll cancels the tasks of every buffer on the stack.
func (s *Stack) CloseAll() {
	for _, b := range s.items {
		b.Close()
	}
}
