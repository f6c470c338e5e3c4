package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/confsync/pkg/config"
	"github.com/cuemby/confsync/pkg/connector"
	"github.com/cuemby/confsync/pkg/log"
	"github.com/cuemby/confsync/pkg/types"
	"github.com/rs/zerolog"
)

// Name is the connector tag for records synced with a directory
const Name = "file"

func init() {
	connector.Register(config.RemoteFile, func(cfg *config.Config) (connector.Connector, error) {
		return New(cfg.Connectors.File.Dir), nil
	})
}

// Connector uses a local directory as the remote. Each record is one JSON
// file named by connector.RecordKey.
type Connector struct {
	dir    string
	logger zerolog.Logger
}

// New creates a directory connector. An empty dir leaves it disconnected.
func New(dir string) *Connector {
	return &Connector{
		dir:    dir,
		logger: log.WithConnector(Name),
	}
}

func (c *Connector) Name() string { return Name }

func (c *Connector) Connected() bool { return c.dir != "" }

// Exchange writes pending records into the directory and, on download, reads
// every record file back.
func (c *Connector) Exchange(ctx context.Context, local []*types.Configuration, download bool) (*types.ExchangeResult, error) {
	if !c.Connected() {
		return nil, connector.ErrNotConnected
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create remote dir: %w", err)
	}

	report := &types.UploadReport{}
	for _, cfg := range connector.Pending(local) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.write(cfg); err != nil {
			return nil, fmt.Errorf("failed to upload %q: %w", cfg.Name, err)
		}
		report.Acks = append(report.Acks, types.Ack{Name: cfg.Name, Digest: cfg.Digest()})
	}

	result := &types.ExchangeResult{Upload: report}
	if !download {
		return result, nil
	}

	snapshot, err := c.read(ctx)
	if err != nil {
		return nil, err
	}
	result.Snapshot = snapshot

	c.logger.Debug().
		Int("uploaded", len(report.Acks)).
		Int("downloaded", snapshot.Len()).
		Msg("Exchange complete")

	return result, nil
}

// write replaces the record file through a rename so readers never see a
// partial document
func (c *Connector) write(cfg *types.Configuration) error {
	data, err := connector.EncodeRecord(types.RecordFromConfiguration(cfg))
	if err != nil {
		return err
	}

	path := filepath.Join(c.dir, connector.RecordKey(cfg.Name))
	tmp, err := os.CreateTemp(c.dir, ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (c *Connector) read(ctx context.Context) (*types.RemoteSnapshot, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote dir: %w", err)
	}

	snapshot := types.NewRemoteSnapshot()
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		name, ok := connector.NameFromKey(entry.Name())
		if !ok {
			continue
		}

		data, err := os.ReadFile(filepath.Join(c.dir, entry.Name()))
		if errors.Is(err, os.ErrNotExist) {
			continue // removed between list and read
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}

		record, err := connector.DecodeRecord(entry.Name(), data)
		if err != nil {
			return nil, err
		}
		snapshot.Records[name] = record
	}

	return snapshot, nil
}
