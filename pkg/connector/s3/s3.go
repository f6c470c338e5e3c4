package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cuemby/confsync/pkg/config"
	"github.com/cuemby/confsync/pkg/connector"
	"github.com/cuemby/confsync/pkg/log"
	"github.com/cuemby/confsync/pkg/types"
	"github.com/rs/zerolog"
)

// Name is the connector tag for records synced with a bucket
const Name = "s3"

func init() {
	connector.Register(config.RemoteS3, func(cfg *config.Config) (connector.Connector, error) {
		return Open(context.Background(), cfg.Connectors.S3)
	})
}

// API is the subset of the S3 client the connector calls
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Connector stores each record as one object under a bucket prefix
type Connector struct {
	api    API
	bucket string
	prefix string
	logger zerolog.Logger
}

// Open builds a connector from configuration. Without a bucket the
// connector is returned disconnected rather than failing, so the daemon can
// start before credentials are provisioned.
func Open(ctx context.Context, cfg config.S3ConnectorConfig) (connector.Connector, error) {
	if cfg.Bucket == "" {
		return connector.Disconnected(Name), nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return New(client, cfg.Bucket, cfg.Prefix), nil
}

// New creates a connector over an existing client
func New(api API, bucket, prefix string) *Connector {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Connector{
		api:    api,
		bucket: bucket,
		prefix: prefix,
		logger: log.WithConnector(Name),
	}
}

func (c *Connector) Name() string { return Name }

func (c *Connector) Connected() bool { return c.api != nil && c.bucket != "" }

// Exchange uploads pending records and, on download, lists and fetches every
// record object under the prefix.
func (c *Connector) Exchange(ctx context.Context, local []*types.Configuration, download bool) (*types.ExchangeResult, error) {
	if !c.Connected() {
		return nil, connector.ErrNotConnected
	}

	report := &types.UploadReport{}
	for _, cfg := range connector.Pending(local) {
		data, err := connector.EncodeRecord(types.RecordFromConfiguration(cfg))
		if err != nil {
			return nil, err
		}

		_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(c.bucket),
			Key:         aws.String(c.prefix + connector.RecordKey(cfg.Name)),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upload %q: %w", cfg.Name, err)
		}
		report.Acks = append(report.Acks, types.Ack{Name: cfg.Name, Digest: cfg.Digest()})
	}

	result := &types.ExchangeResult{Upload: report}
	if !download {
		return result, nil
	}

	snapshot, err := c.download(ctx)
	if err != nil {
		return nil, err
	}
	result.Snapshot = snapshot

	c.logger.Debug().
		Str("bucket", c.bucket).
		Int("uploaded", len(report.Acks)).
		Int("downloaded", snapshot.Len()).
		Msg("Exchange complete")

	return result, nil
}

func (c *Connector) download(ctx context.Context) (*types.RemoteSnapshot, error) {
	snapshot := types.NewRemoteSnapshot()

	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(c.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list records: %w", err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			rel := strings.TrimPrefix(key, c.prefix)
			if strings.Contains(rel, "/") {
				continue // nested prefixes belong to someone else
			}
			name, ok := connector.NameFromKey(rel)
			if !ok {
				continue
			}

			record, err := c.fetch(ctx, key)
			if err != nil {
				return nil, err
			}
			snapshot.Records[name] = record
		}
	}

	return snapshot, nil
}

func (c *Connector) fetch(ctx context.Context, key string) (types.RemoteRecord, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return types.RemoteRecord{}, fmt.Errorf("failed to fetch %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return types.RemoteRecord{}, fmt.Errorf("failed to read %s: %w", key, err)
	}

	return connector.DecodeRecord(key, data)
}
