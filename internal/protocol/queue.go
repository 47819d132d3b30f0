package protocol

// Queue hands commands from transport goroutines to the control loop.
// Enqueue never blocks; a full queue drops the command.
type Queue struct {
	ch chan Command
}

func NewQueue(size int) *Queue {
	return &Queue{ch: make(chan Command, size)}
}

func (q *Queue) Enqueue(cmd Command) bool {
	select {
	case q.ch <- cmd:
		return true
	default:
		return false
	}
}

// Poll returns the next command without waiting.
func (q *Queue) Poll() (Command, bool) {
	select {
	case cmd := <-q.ch:
		return cmd, true
	default:
		return Command{}, false
	}
}
