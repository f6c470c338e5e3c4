/*
Package reconciler computes the changes that converge local configurations onto
a remote snapshot.

Reconcile is a pure function: it reads the local records and the snapshot and
returns a list of intents without touching any state. Applying those intents is
the job of the state container (see package manager), and driving the whole
round is the job of package session.

# Algorithm

	┌─────────────────────────────┐      ┌───────────────────────┐
	│ local records               │      │ remote snapshot       │
	│  owned by connector ──┐     │      │  name → RemoteRecord  │
	│  everything else (skip)     │      └───────────┬───────────┘
	└───────────────────────┼─────┘                  │
	                        ▼                        ▼
	              ┌───────────────────────────────────────────┐
	              │ for each remote name (sorted):            │
	              │   no local match      → Add (new ID)      │
	              │   content differs     → Update (remote    │
	              │                         wins, ID kept)    │
	              │   content identical   → keep, no intent   │
	              │ owned records not kept → Delete           │
	              └───────────────────────────────────────────┘

Adds and updates come first in snapshot name order, deletes follow in local
order. Intents always target disjoint records, so the order only matters for
deterministic tests.

# Safety

A nil snapshot means the fetch produced nothing usable and returns no intents.
This keeps a failed or degenerate fetch from wiping local data. An empty,
non-nil snapshot is a real signal that the remote holds no records, and every
record owned by the connector is deleted.

Records without the connector tag are never returned in any intent.

# Properties

  - Idempotence: reconciling again after applying the intents yields nothing.
  - Convergence: afterwards every remote name has exactly one owned local
    record with matching content, and no owned record lacks a remote name.
  - Duplicates: if several owned records share a name, the first one is the
    match and the rest are deleted.

# Usage

	intents := reconciler.Reconcile("s3", local, snapshot, uuid.NewString)
	for _, in := range intents {
		switch in.Kind {
		case types.IntentAdd:
			err = mgr.ApplyAdd(in.Configuration)
		case types.IntentUpdate:
			err = mgr.ApplyUpdate(in.ID, in.Configuration)
		case types.IntentDelete:
			err = mgr.ApplyDelete(in.ID)
		}
	}
*/
package reconciler
