/*
Package resilience provides a circuit breaker for outbound calls.

The remote sink posts batches of drained lines through a Breaker so a dead
collector costs one fast ErrCircuitOpen per drain cycle instead of a full
retry cycle.

# Usage

	breaker := resilience.New("remote-sink", resilience.Settings{
		MaxRequests:   1,
		Timeout:       30 * time.Second,
		ReadyToTrip:   func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 3 },
		OnStateChange: resilience.LogStateChanges(logger),
	})

	err := breaker.Do(ctx, func(ctx context.Context) error {
		return post(ctx, batch)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
