// Package cacheclient manages the lifecycle of the Redis client shared by
// the process.
//
// A Manager is created Uninitialized at startup, made Ready with Setup and
// shut down with Close:
//
//	m := cacheclient.New(cfg, logger)
//	if err := m.Setup(ctx); err != nil {
//		// errors.Is(err, cacheclient.ErrAuthentication), ErrConnectivity or ErrUnexpected
//	}
//	defer m.Close(ctx)
//	cacheclient.SetDefault(m)
//
// Client fails with ErrNotInitialized outside the Ready state. That error
// means Setup was never called or did not succeed; it is never returned for
// an unreachable server.
package cacheclient
