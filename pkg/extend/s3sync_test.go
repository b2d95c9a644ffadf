package extend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	errUtils "github.com/cedar-backup/cback/errors"
)

// syncSource holds a.txt (10 bytes) and sub/b.txt (20 bytes).
func syncSource(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), make([]byte, 10), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), make([]byte, 20), 0o644))
	return dir
}

func object(key string, size int64, modified time.Time) types.Object {
	return types.Object{Key: aws.String(key), Size: aws.Int64(size), LastModified: aws.Time(modified)}
}

var (
	future = time.Now().Add(24 * time.Hour)
	past   = time.Now().Add(-24 * time.Hour)
)

func TestSync(t *testing.T) {
	source := syncSource(t)
	client := new(MockS3Client)
	uploader := &fakeUploader{objects: map[string]int64{}}

	listInput := mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.ToString(in.Bucket) == "backups" && aws.ToString(in.Prefix) == "music/"
	})
	client.On("ListObjectsV2", mock.Anything, listInput).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{
			object("music/a.txt", 10, future),
			object("music/sub/b.txt", 5, future),
			object("music/gone.txt", 1, past),
		},
	}, nil).Once()
	client.On("DeleteObjects", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectsInput) bool {
		return len(in.Delete.Objects) == 1 && aws.ToString(in.Delete.Objects[0].Key) == "music/gone.txt"
	})).Return(&s3.DeleteObjectsOutput{}, nil).Once()
	client.On("ListObjectsV2", mock.Anything, listInput).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{
			object("music/a.txt", 10, future),
			object("music/sub/b.txt", 20, future),
		},
	}, nil).Once()

	s := &Syncer{newClients: clientsFor(client, uploader)}
	result, err := s.Sync(context.Background(), source, "s3://backups/music/", SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, &SyncResult{Uploaded: 1, Unchanged: 1, Deleted: 1}, result)
	assert.Equal(t, map[string]int64{"music/sub/b.txt": 20}, uploader.objects)
	client.AssertExpectations(t)
}

func TestSync_UploadsStaleObjects(t *testing.T) {
	source := syncSource(t)
	client := new(MockS3Client)
	uploader := &fakeUploader{objects: map[string]int64{}}

	// Same sizes, but the local files are newer than the objects.
	client.On("ListObjectsV2", mock.Anything, mock.Anything).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{
			object("a.txt", 10, past),
			object("sub/b.txt", 20, past),
			object("other.txt", 3, past),
		},
	}, nil).Twice()

	s := &Syncer{newClients: clientsFor(client, uploader)}
	result, err := s.Sync(context.Background(), source, "s3://backups", SyncOptions{UploadOnly: true})
	require.NoError(t, err)
	assert.Equal(t, &SyncResult{Uploaded: 2}, result)
	assert.Equal(t, map[string]int64{"a.txt": 10, "sub/b.txt": 20}, uploader.objects)
	client.AssertNotCalled(t, "DeleteObjects", mock.Anything, mock.Anything)
	client.AssertCalled(t, "ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.Prefix == nil
	}))
}

func TestSync_VerifyOnly(t *testing.T) {
	source := syncSource(t)
	client := new(MockS3Client)
	client.On("ListObjectsV2", mock.Anything, mock.Anything).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{object("music/a.txt", 10, past)},
	}, nil).Once()

	s := &Syncer{newClients: clientsFor(client, &fakeUploader{err: assert.AnError})}
	_, err := s.Sync(context.Background(), source, "s3://backups/music", SyncOptions{VerifyOnly: true})
	assert.ErrorIs(t, err, errUtils.ErrSyncVerifyFailed)
	assert.Contains(t, err.Error(), "b.txt")
	client.AssertExpectations(t)
}

func TestSync_FileNames(t *testing.T) {
	source := syncSource(t)
	require.NoError(t, os.WriteFile(filepath.Join(source, "caf\xe9.txt"), nil, 0o644))

	s := &Syncer{newClients: clientsFor(nil, nil)}
	_, err := s.Sync(context.Background(), source, "s3://backups/music", SyncOptions{})
	assert.ErrorIs(t, err, errUtils.ErrUnsafeFilename)
	assert.Contains(t, errUtils.FormatHints(err), "--ignore-warnings")

	client := new(MockS3Client)
	client.On("ListObjectsV2", mock.Anything, mock.Anything).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{
			object("music/a.txt", 10, future),
			object("music/sub/b.txt", 20, future),
			object("music/caf\xe9.txt", 0, future),
		},
	}, nil)
	s = &Syncer{newClients: clientsFor(client, &fakeUploader{})}
	_, err = s.Sync(context.Background(), source, "s3://backups/music", SyncOptions{VerifyOnly: true, IgnoreWarnings: true})
	assert.NoError(t, err)
}

func TestSync_Source(t *testing.T) {
	s := &Syncer{newClients: clientsFor(nil, nil)}
	_, err := s.Sync(context.Background(), filepath.Join(t.TempDir(), "missing"), "s3://backups", SyncOptions{})
	assert.ErrorIs(t, err, errUtils.ErrInvalidSyncSource)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = s.Sync(context.Background(), file, "s3://backups", SyncOptions{})
	assert.ErrorIs(t, err, errUtils.ErrInvalidSyncSource)
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		url    string
		bucket string
		prefix string
		valid  bool
	}{
		{"s3://backups/music", "backups", "music", true},
		{"s3://backups/music/2024/", "backups", "music/2024", true},
		{"s3://backups", "backups", "", true},
		{"s3://backups/", "backups", "", true},
		{"s3:///music", "", "", false},
		{"https://backups.s3.amazonaws.com/music", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			bucket, prefix, err := ParseS3URL(tt.url)
			if !tt.valid {
				assert.ErrorIs(t, err, errUtils.ErrInvalidSyncTarget)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.prefix, prefix)
		})
	}
}
