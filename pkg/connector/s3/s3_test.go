package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cuemby/confsync/pkg/config"
	"github.com/cuemby/confsync/pkg/connector"
	"github.com/cuemby/confsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is an in-memory bucket that pages listings two keys at a time
type fakeAPI struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	lists   int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{objects: make(map[string][]byte)}
}

func (f *fakeAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeAPI) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++

	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) && key > aws.ToString(in.ContinuationToken) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	if len(keys) > 2 {
		keys = keys[:2]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[1])
	}
	for _, key := range keys {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func TestExchangeUploadsPending(t *testing.T) {
	api := newFakeAPI()
	c := New(api, "rules", "team")

	local := []*types.Configuration{
		{ID: "1", Name: "work", Content: "a", Connector: Name, Pending: true},
		{ID: "2", Name: "home", Content: "b", Connector: Name},
	}

	result, err := connector.Exchange(context.Background(), c, local, false)
	require.NoError(t, err)

	require.Len(t, result.Upload.Acks, 1)
	assert.Equal(t, local[0].Digest(), result.Upload.Acks[0].Digest)
	assert.Contains(t, api.objects, "team/work.json")
	assert.Len(t, api.objects, 1)
	assert.Zero(t, api.lists, "no listing without download")
}

func TestExchangeDownloadPaginates(t *testing.T) {
	api := newFakeAPI()
	c := New(api, "rules", "team/")

	var local []*types.Configuration
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		local = append(local, &types.Configuration{ID: name, Name: name, Content: "content-" + name, Pending: true})
	}
	_, err := c.Exchange(context.Background(), local, false)
	require.NoError(t, err)

	api.objects["team/nested/x.json"] = []byte(`{"name":"x"}`)
	api.objects["other/y.json"] = []byte(`{"name":"y"}`)
	api.objects["team/notes.txt"] = []byte("ignored")

	result, err := connector.Exchange(context.Background(), c, nil, true)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Snapshot.Len())
	assert.Equal(t, "content-c", result.Snapshot.Records["c"].Content)
	assert.Greater(t, api.lists, 1)
}

func TestExchangeUploadFailure(t *testing.T) {
	api := newFakeAPI()
	api.putErr = errors.New("access denied")

	local := []*types.Configuration{{ID: "1", Name: "work", Pending: true}}

	_, err := New(api, "rules", "").Exchange(context.Background(), local, true)
	assert.ErrorContains(t, err, "access denied")
}

func TestExchangeCorruptObject(t *testing.T) {
	api := newFakeAPI()
	api.objects["bad.json"] = []byte("not json")

	_, err := New(api, "rules", "").Exchange(context.Background(), nil, true)
	assert.ErrorIs(t, err, connector.ErrMalformedResult)
}

func TestOpenWithoutBucket(t *testing.T) {
	c, err := Open(context.Background(), config.S3ConnectorConfig{})
	require.NoError(t, err)
	assert.Equal(t, Name, c.Name())
	assert.False(t, c.Connected())
}

func TestOpenStaticCredentials(t *testing.T) {
	c, err := Open(context.Background(), config.S3ConnectorConfig{
		Bucket:          "rules",
		Region:          "auto",
		Endpoint:        "http://127.0.0.1:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	assert.True(t, c.Connected())
}
