package repository

// coalesce wakes a watcher without blocking; pending wake-ups merge into one.
func coalesce(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
