// Package connectivity implements the connectivity sub-guard.
//
// A Monitor combines the client's own network status with a backend health
// probe. While either fails, every route except the landing page is covered
// by a blocking overlay and the pointer Lock is held. Reconnects run on the
// "connectivity.reconnect" timer with a delay that starts at 5s and doubles
// up to 20s; Retry checks immediately. Close always releases the lock.
package connectivity
