package scheduler

import "container/heap"

// taskQueue is a bounded max-heap ordered by Priority descending, then by
// SubmittedAt ascending (older first) — properties #6/#7. It implements
// container/heap.Interface directly, the same idiom the standard
// library's own heap examples use.
type taskQueue struct {
	items []*CopyTask
}

func (q *taskQueue) Len() int { return len(q.items) }

func (q *taskQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.SubmittedAt.Before(b.SubmittedAt)
}

func (q *taskQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *taskQueue) Push(x interface{}) {
	q.items = append(q.items, x.(*CopyTask))
}

func (q *taskQueue) Pop() interface{} {
	old := q.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	return item
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{}
	heap.Init(q)
	return q
}

func (q *taskQueue) push(t *CopyTask) { heap.Push(q, t) }

func (q *taskQueue) pop() *CopyTask {
	if q.Len() == 0 {
		return nil
	}
	return heap.Pop(q).(*CopyTask)
}

// remove deletes the task with id from the queue, if still pending, used
// by Cancel. Returns true if it was found and removed.
func (q *taskQueue) remove(id string) bool {
	for i, t := range q.items {
		if t.ID == id {
			heap.Remove(q, i)
			return true
		}
	}
	return false
}
