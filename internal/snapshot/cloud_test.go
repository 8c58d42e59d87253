package snapshot

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, assert.AnError
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(params.Prefix)
	delim := aws.ToString(params.Delimiter)

	out := &s3.ListObjectsV2Output{}
	seenPrefixes := map[string]bool{}
	for key := range f.objects {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		rest := key[len(prefix):]
		if delim != "" {
			if idx := indexOf(rest, delim); idx >= 0 {
				sub := prefix + rest[:idx+1]
				if !seenPrefixes[sub] {
					seenPrefixes[sub] = true
					out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(sub)})
				}
				continue
			}
		}
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func TestCloud_UploadListDownloadRoundTrip(t *testing.T) {
	fake := newFakeS3()
	cloud := &Cloud{client: fake, bucket: "test-bucket", prefix: "memories/"}

	srcDir := t.TempDir()
	backupDir := filepath.Join(srcDir, "backup1")
	require.NoError(t, os.MkdirAll(backupDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(backupDir, "metadata.json"), []byte(`{}`), 0o644))

	require.NoError(t, cloud.UploadBackup(context.Background(), backupDir))

	names, err := cloud.ListRemoteSnapshots(context.Background())
	require.NoError(t, err)
	assert.Contains(t, names, "backup1")

	latest, ok, err := cloud.GetLatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "backup1", latest)

	destDir := t.TempDir()
	require.NoError(t, cloud.DownloadBackup(context.Background(), "backup1", destDir))

	data, err := os.ReadFile(filepath.Join(destDir, "backup1", "metadata.json"))
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}

func TestCloud_DownloadBackupRejectsUnsafeNames(t *testing.T) {
	cloud := &Cloud{client: newFakeS3(), bucket: "b", prefix: "memories/"}
	assert.Error(t, cloud.DownloadBackup(context.Background(), "../escape", t.TempDir()))
}
