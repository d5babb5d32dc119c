package queue

// Queue represents a basic FIFO queue.
type Queue interface {
	Enqueue(item interface{}) error
	ReadAllMessages() ([]interface{}, error)
	Size() int
	ClearQueue() error
}
