// Package workqueue runs delayed work items on one dedicated goroutine.
//
// Items never run concurrently with each other, which is what lets a
// periodic drain touch shared memory without locks. A work item re-arms
// itself from inside its own callback to form a periodic task:
//
//	q := workqueue.New("tee-log", logger)
//	var w *workqueue.DelayedWork
//	w = q.NewDelayedWork(func() {
//		drain()
//		if err := w.Schedule(time.Second); err != nil {
//			logger.Error("Failed to re-arm", zap.Error(err))
//		}
//	})
//	w.Schedule(time.Second)
//	...
//	w.CancelSync() // waits for a running drain
//	q.Destroy()
package workqueue
