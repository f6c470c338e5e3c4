/*
Package session runs one sync session against a connector.

A session reads the local configurations, exchanges the connector-owned ones
with the remote (pushing pending edits, optionally downloading the remote
snapshot), clears Pending on acknowledged uploads, reconciles the snapshot
against a fresh read of the local set and applies the resulting intents
through the state container.

Run never returns an error. Every failure becomes a types.Diagnostic on the
returned outcome:

	not_connected     connector has no usable remote
	state_failure     local configurations could not be read
	exchange_failure  the connector call failed or timed out
	malformed_result  the connector broke its result contract
	apply_failure     one intent or acknowledgment could not be applied

Apply failures do not stop the session; each intent is applied atomically and
the next session retries whatever is still divergent.

not_connected is the idle state of a remote that was never configured. It is
counted as a skipped session and leaves the connector component healthy.

Records still Pending after acknowledgment hold a local edit the remote has
not seen, typically one made while the exchange was in flight. Updates and
deletes for them are held back and counted in SyncOutcome.Held; the next
session pushes the edit.
*/
package session
