/*
Package manager is the confsync state container.

The Manager owns the BoltDB configuration store and is its only writer:
every mutation, whether it comes from a sync session or from a user through
the API, becomes one Raft command that ConfigFSM applies atomically. Raft
runs as a single voter; it gives confsync a durable, ordered intent log with
snapshots and crash recovery rather than replication.

	sync session ──┐                      ┌──────────────┐
	               ├─▶ Manager.Apply ──▶ │ raft log      │
	API / CLI    ──┘                      └──────┬───────┘
	                                             ▼
	                                      ConfigFSM.Apply ──▶ BoltDB

# Commands

	add_configuration     insert (or overwrite on replay) a record
	update_configuration  replace a record; ID immutable, CreatedAt kept
	delete_configuration  remove a record
	mark_synced           clear Pending if the acknowledged digest matches

The FSM rejects a name that collides with another record of the same
connector (ErrDuplicateName) and any update that changes the record ID
(ErrImmutableID). A failed command leaves the store untouched.

# Pending edits

Local edits of a connector-owned record set Pending. The connector pushes
pending records on the next exchange and acknowledges them with a content
digest; MarkSynced clears the flag only if the content has not changed since.

# Startup

NewManager loads or creates the instance ID. Bootstrap opens the raft-boltdb
log and stable stores, bootstraps the single-node configuration when there is
no prior state, waits for leadership, and on first start seeds the disabled
example configurations.
*/
package manager
