package connector

import (
	"context"
	"errors"
	"testing"

	"github.com/cuemby/confsync/pkg/config"
	"github.com/cuemby/confsync/pkg/types"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConnector struct {
	connected bool
	result    *types.ExchangeResult
	err       error
	calls     int
}

func (s *stubConnector) Name() string    { return "stub" }
func (s *stubConnector) Connected() bool { return s.connected }

func (s *stubConnector) Exchange(context.Context, []*types.Configuration, bool) (*types.ExchangeResult, error) {
	s.calls++
	return s.result, s.err
}

func TestExchange(t *testing.T) {
	boom := errors.New("network down")

	tests := []struct {
		name    string
		stub    *stubConnector
		wantErr error
		calls   int
	}{
		{
			name:    "not connected skips call",
			stub:    &stubConnector{},
			wantErr: ErrNotConnected,
		},
		{
			name:    "transport error passes through",
			stub:    &stubConnector{connected: true, err: boom},
			wantErr: boom,
			calls:   1,
		},
		{
			name:    "nil result is malformed",
			stub:    &stubConnector{connected: true},
			wantErr: ErrMalformedResult,
			calls:   1,
		},
		{
			name: "valid result",
			stub: &stubConnector{connected: true, result: &types.ExchangeResult{
				Upload:   &types.UploadReport{},
				Snapshot: types.NewRemoteSnapshot(types.RemoteRecord{Name: "a", Content: "x"}),
			}},
			calls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Exchange(context.Background(), tt.stub, nil, true)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, result)
			}
			assert.Equal(t, tt.calls, tt.stub.calls)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		result *types.ExchangeResult
		valid  bool
	}{
		{name: "nil", result: nil},
		{name: "missing upload", result: &types.ExchangeResult{Snapshot: types.NewRemoteSnapshot()}},
		{name: "upload only", result: &types.ExchangeResult{Upload: &types.UploadReport{}}, valid: true},
		{name: "empty snapshot", result: &types.ExchangeResult{Upload: &types.UploadReport{}, Snapshot: types.NewRemoteSnapshot()}, valid: true},
		{
			name: "key mismatch",
			result: &types.ExchangeResult{
				Upload:   &types.UploadReport{},
				Snapshot: &types.RemoteSnapshot{Records: map[string]types.RemoteRecord{"a": {Name: "b"}}},
			},
		},
		{
			name: "empty record name",
			result: &types.ExchangeResult{
				Upload:   &types.UploadReport{},
				Snapshot: &types.RemoteSnapshot{Records: map[string]types.RemoteRecord{"": {}}},
			},
		},
		{
			name: "ack without name",
			result: &types.ExchangeResult{
				Upload: &types.UploadReport{Acks: []types.Ack{{Digest: digest.FromString("x")}}},
			},
		},
		{
			name: "ack with bad digest",
			result: &types.ExchangeResult{
				Upload: &types.UploadReport{Acks: []types.Ack{{Name: "a", Digest: "nope"}}},
			},
		},
		{
			name: "valid ack",
			result: &types.ExchangeResult{
				Upload: &types.UploadReport{Acks: []types.Ack{{Name: "a", Digest: digest.FromString("x")}}},
			},
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.result)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrMalformedResult)
			}
		})
	}
}

func TestDisconnected(t *testing.T) {
	c := Disconnected("s3")

	assert.Equal(t, "s3", c.Name())
	assert.False(t, c.Connected())

	_, err := c.Exchange(context.Background(), nil, true)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestPending(t *testing.T) {
	local := []*types.Configuration{
		{ID: "1", Name: "a", Pending: true},
		{ID: "2", Name: "b"},
		nil,
		{ID: "3", Name: "c", Pending: true},
	}

	pending := Pending(local)
	require.Len(t, pending, 2)
	assert.Equal(t, "1", pending[0].ID)
	assert.Equal(t, "3", pending[1].ID)
}

func TestRecordKey(t *testing.T) {
	tests := []string{"simple", "with space", "slash/inside", "ünïcode", "100%"}

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			key := RecordKey(name)
			assert.NotContains(t, key, "/")

			got, ok := NameFromKey(key)
			require.True(t, ok)
			assert.Equal(t, name, got)
		})
	}

	_, ok := NameFromKey("notes.txt")
	assert.False(t, ok)
	_, ok = NameFromKey(".json")
	assert.False(t, ok)
}

func TestDecodeRecord(t *testing.T) {
	enabled := true
	data, err := EncodeRecord(types.RemoteRecord{Name: "a", Content: "x", Enabled: &enabled})
	require.NoError(t, err)

	record, err := DecodeRecord("a.json", data)
	require.NoError(t, err)
	assert.Equal(t, "a", record.Name)
	require.NotNil(t, record.Enabled)
	assert.True(t, *record.Enabled)

	_, err = DecodeRecord("b.json", []byte("{not json"))
	assert.ErrorIs(t, err, ErrMalformedResult)
}

func TestOpen(t *testing.T) {
	cfg := config.Default()

	c, err := Open(cfg)
	require.NoError(t, err)
	assert.False(t, c.Connected())

	Register("test-remote", func(*config.Config) (Connector, error) {
		return &stubConnector{connected: true}, nil
	})
	cfg.Sync.Remote = "test-remote"
	c, err = Open(cfg)
	require.NoError(t, err)
	assert.True(t, c.Connected())

	cfg.Sync.Remote = "missing"
	_, err = Open(cfg)
	assert.ErrorContains(t, err, "unknown remote")

	assert.Panics(t, func() {
		Register("test-remote", func(*config.Config) (Connector, error) { return nil, nil })
	})
}
