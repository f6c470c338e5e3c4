package connector

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/confsync/pkg/types"
)

var (
	// ErrNotConnected is returned when the connector has no usable remote
	ErrNotConnected = errors.New("connector not connected")

	// ErrMalformedResult is returned when an exchange result breaks the
	// connector contract
	ErrMalformedResult = errors.New("malformed exchange result")
)

// Connector is the boundary to a remote configuration source.
//
// Exchange pushes every local record marked Pending and acknowledges each
// upload with the digest of the pushed content. A failed upload fails the
// whole exchange. When download is true the result carries the full remote
// snapshot; otherwise Snapshot is nil.
type Connector interface {
	Name() string
	Connected() bool
	Exchange(ctx context.Context, local []*types.Configuration, download bool) (*types.ExchangeResult, error)
}

// Exchange runs one exchange against c and validates the result.
func Exchange(ctx context.Context, c Connector, local []*types.Configuration, download bool) (*types.ExchangeResult, error) {
	if !c.Connected() {
		return nil, ErrNotConnected
	}

	result, err := c.Exchange(ctx, local, download)
	if err != nil {
		return nil, err
	}

	if err := Validate(result); err != nil {
		return nil, err
	}

	return result, nil
}

// Validate checks an exchange result against the connector contract
func Validate(result *types.ExchangeResult) error {
	if result == nil {
		return fmt.Errorf("%w: no result", ErrMalformedResult)
	}
	if result.Upload == nil {
		return fmt.Errorf("%w: missing upload report", ErrMalformedResult)
	}

	for i, ack := range result.Upload.Acks {
		if ack.Name == "" {
			return fmt.Errorf("%w: ack %d has no name", ErrMalformedResult, i)
		}
		if err := ack.Digest.Validate(); err != nil {
			return fmt.Errorf("%w: ack %q: %v", ErrMalformedResult, ack.Name, err)
		}
	}

	if result.Snapshot == nil {
		return nil
	}
	for key, record := range result.Snapshot.Records {
		if record.Name == "" {
			return fmt.Errorf("%w: record %q has no name", ErrMalformedResult, key)
		}
		if key != record.Name {
			return fmt.Errorf("%w: record %q stored under key %q", ErrMalformedResult, record.Name, key)
		}
	}

	return nil
}

// Pending returns the records with local edits to push
func Pending(local []*types.Configuration) []*types.Configuration {
	var out []*types.Configuration
	for _, c := range local {
		if c != nil && c.Pending {
			out = append(out, c)
		}
	}
	return out
}

type disconnected struct {
	name string
}

// Disconnected returns a connector that never connects. The daemon uses it
// when sync has no remote configured.
func Disconnected(name string) Connector {
	return disconnected{name: name}
}

func (d disconnected) Name() string    { return d.name }
func (d disconnected) Connected() bool { return false }

func (d disconnected) Exchange(context.Context, []*types.Configuration, bool) (*types.ExchangeResult, error) {
	return nil, ErrNotConnected
}
