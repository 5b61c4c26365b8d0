// Package session owns the lifecycle of one attachment to a producer's
// shared log region.
//
// Attach negotiates the region with the producer (which may move it),
// maps it, validates the control block and writes the consumer mode. Start
// arms a periodic drain on a single-worker queue; every cycle re-arms
// itself, so cycles never overlap. Detach cancels the drain and waits for
// any cycle in flight before the region is unmapped and the producer is
// told logging has stopped.
//
//	s, err := session.AttachWithRetry(ctx, cfg, &session.StaticNegotiator{},
//		session.FileMapper{Path: "/dev/shm/teelog"}, sink, 30*time.Second)
//	if err != nil {
//		return err
//	}
//	defer s.Detach(context.Background())
//	return s.Start()
package session
