package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API abstracts the handful of S3 operations the cloud mirror needs, so
// tests can substitute a fake client without standing up a real bucket.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// CloudConfig configures the S3-compatible cloud mirror. Endpoint is
// optional and, when set, points at any S3-compatible object store (e.g. a
// self-hosted MinIO) instead of AWS S3 itself.
type CloudConfig struct {
	Enabled   bool
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Cloud mirrors local snapshot directories to an S3-compatible bucket.
type Cloud struct {
	client s3API
	bucket string
	prefix string
}

// NewCloud builds a Cloud client from CloudConfig. Returns (nil, nil) when
// cloud sync is disabled or unconfigured, matching the "absence of
// configuration disables sync entirely rather than erroring" contract.
func NewCloud(ctx context.Context, cfg CloudConfig) (*Cloud, error) {
	if !cfg.Enabled || cfg.Bucket == "" {
		return nil, nil
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{AccessKeyID: cfg.AccessKey, SecretAccessKey: cfg.SecretKey}, nil
			}),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("snapshot: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	prefix := strings.TrimSuffix(cfg.Prefix, "/") + "/"
	if prefix == "/" {
		prefix = "memories/"
	}

	return &Cloud{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

// UploadBackup uploads every regular file in dir under prefix/<backupName>/.
// Errors are the caller's to log-and-ignore per the "never fails a write"
// contract; UploadBackup itself just reports what happened.
func (c *Cloud) UploadBackup(ctx context.Context, dir string) error {
	backupName := filepath.Base(dir)
	s3Prefix := c.prefix + backupName + "/"

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("snapshot: read backup dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("snapshot: open %s: %w", entry.Name(), err)
		}
		key := s3Prefix + entry.Name()
		_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(key),
			Body:   f,
		})
		f.Close()
		if err != nil {
			return fmt.Errorf("snapshot: upload %s: %w", key, err)
		}
	}
	return nil
}

// DownloadBackup downloads every object under prefix/<backupName>/ into
// destDir/<backupName>/. Rejects names containing "..", "/", or "\".
func (c *Cloud) DownloadBackup(ctx context.Context, backupName, destDir string) error {
	if err := ValidateName(backupName); err != nil {
		return err
	}

	s3Prefix := c.prefix + backupName + "/"
	out, err := c.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(s3Prefix),
	})
	if err != nil {
		return fmt.Errorf("snapshot: list remote objects: %w", err)
	}
	if len(out.Contents) == 0 {
		return fmt.Errorf("snapshot: no remote backup named %q", backupName)
	}

	dest := filepath.Join(destDir, backupName)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("snapshot: create destination: %w", err)
	}

	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		name := key[strings.LastIndex(key, "/")+1:]
		if name == "" {
			continue
		}
		res, err := c.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
		if err != nil {
			return fmt.Errorf("snapshot: download %s: %w", key, err)
		}
		f, err := os.Create(filepath.Join(dest, name))
		if err != nil {
			res.Body.Close()
			return fmt.Errorf("snapshot: create local file %s: %w", name, err)
		}
		_, copyErr := io.Copy(f, res.Body)
		f.Close()
		res.Body.Close()
		if copyErr != nil {
			return fmt.Errorf("snapshot: write %s: %w", name, copyErr)
		}
	}
	return nil
}

// ListRemoteSnapshots returns backup names under the configured prefix,
// sorted descending by name (names embed a sortable UTC timestamp).
func (c *Cloud) ListRemoteSnapshots(ctx context.Context) ([]string, error) {
	out, err := c.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(c.prefix),
		Delimiter: aws.String("/"),
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: list remote snapshots: %w", err)
	}

	var names []string
	for _, p := range out.CommonPrefixes {
		trimmed := strings.TrimSuffix(aws.ToString(p.Prefix), "/")
		name := trimmed[strings.LastIndex(trimmed, "/")+1:]
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// GetLatestSnapshot returns the most recent remote backup name, if any.
func (c *Cloud) GetLatestSnapshot(ctx context.Context) (string, bool, error) {
	names, err := c.ListRemoteSnapshots(ctx)
	if err != nil {
		return "", false, err
	}
	if len(names) == 0 {
		return "", false, nil
	}
	return names[0], true, nil
}
