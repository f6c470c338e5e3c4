/*
Package scheduler decides when sync sessions run.

A Scheduler runs one session as soon as it starts and then one per timer
tick. The delay follows Backoff: it starts at one second, doubles after each
session that changed nothing and is capped at sixty seconds; a session that
changed something drops it back to one second.

TriggerNow queues a manual session. Triggers that arrive while one is
already queued are merged into it, so a burst of requests costs a single
session. A manual session resets the backoff but leaves the pending timer
alone.

Sessions only run on the scheduler goroutine, and the Idle/Running/Stopped
state refuses a second session while one is in flight.
*/
package scheduler
