/*
Package types defines the core data structures shared by confsync packages.

# Configurations

A Configuration is a user-authored rule set (Content) with metadata. Its ID is
assigned once at creation and never changes; its Name is the key used to match
it against remote data. Records with an empty Connector are purely local and
are never touched by reconciliation.

# Remote data

A RemoteSnapshot maps names to RemoteRecords. Absence and emptiness are
different signals:

	var snap *types.RemoteSnapshot        // absent: fetch produced no data, delete nothing
	snap = types.NewRemoteSnapshot()      // empty: remote holds zero records

An ExchangeResult carries the snapshot plus an UploadReport acknowledging each
pushed record by name and content digest.

# Intents and outcomes

Reconciliation yields Intents (add, update, delete) that the state container
applies. A sync session reports a SyncOutcome whose Changed flag is the only
field the scheduler looks at; Diagnostics carry everything else.
*/
package types
