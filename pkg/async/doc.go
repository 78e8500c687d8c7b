// Package async runs a call in the background and hands back a Future for
// its result.
//
// The session manager uses it to fetch a persisted session while it is
// already listening to auth events, and the client runtime to start its
// components concurrently.
//
//	f := async.Go(ctx, provider.GetSession)
//	select {
//	case <-f.Done():
//	    s, err := f.Await()
//	case ev := <-events:
//	}
package async
