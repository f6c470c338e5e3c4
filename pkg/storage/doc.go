/*
Package storage provides BoltDB-backed persistence for confsync's local state.

BoltStore keeps every configuration as a JSON document keyed by its ID in the
"configurations" bucket, and small string values (instance ID, seed marker) in
the "meta" bucket:

	<dataDir>/confsync.db
	  configurations   id → Configuration (JSON)
	  meta             key → value

The store is not written directly by sync code. All mutations go through the
manager's Raft FSM so they are serialized and atomic; the store only offers
the primitive operations the FSM needs, plus ReplaceConfigurations for
restoring a Raft snapshot in a single transaction.

Missing records are reported with errors wrapping ErrNotFound:

	cfg, err := store.GetConfiguration(id)
	if errors.Is(err, storage.ErrNotFound) {
		// ...
	}
*/
package storage
