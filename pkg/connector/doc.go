/*
Package connector defines the boundary between confsync and a remote
configuration source.

A Connector performs one exchange per sync session: it pushes local records
marked Pending, acknowledges each upload with a content digest, and, when
asked to download, returns the complete remote snapshot keyed by record name.
The Exchange helper wraps every call and rejects results that break that
contract with ErrMalformedResult, so the reconciler only ever sees valid
snapshots.

Records travel as one JSON document each. The object key or file name is the
path-escaped record name followed by ".json" (see RecordKey).

Concrete connectors live in sub-packages and register themselves by remote
name:

	import _ "github.com/cuemby/confsync/pkg/connector/file"

	c, err := connector.Open(cfg)
*/
package connector
