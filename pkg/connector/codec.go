package connector

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/cuemby/confsync/pkg/types"
)

// RecordExt is the suffix of every stored record
const RecordExt = ".json"

// RecordKey returns the object key or file name for a record name
func RecordKey(name string) string {
	return url.PathEscape(name) + RecordExt
}

// NameFromKey reverses RecordKey. It reports false for keys that do not name
// a record.
func NameFromKey(key string) (string, bool) {
	if !strings.HasSuffix(key, RecordExt) {
		return "", false
	}
	name, err := url.PathUnescape(strings.TrimSuffix(key, RecordExt))
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}

// EncodeRecord serializes a record for the remote
func EncodeRecord(record types.RemoteRecord) ([]byte, error) {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %q: %w", record.Name, err)
	}
	return append(data, '\n'), nil
}

// DecodeRecord parses a stored record. Undecodable data is a malformed result.
func DecodeRecord(key string, data []byte) (types.RemoteRecord, error) {
	var record types.RemoteRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return types.RemoteRecord{}, fmt.Errorf("%w: %s: %v", ErrMalformedResult, key, err)
	}
	return record, nil
}
