package extend

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	errUtils "github.com/cedar-backup/cback/errors"
	log "github.com/cedar-backup/cback/pkg/logger"
)

// SyncOptions control how a directory is mirrored into a bucket.
type SyncOptions struct {
	// VerifyOnly checks the bucket against the directory without changing it.
	VerifyOnly bool
	// UploadOnly never deletes objects missing from the directory.
	UploadOnly bool
	// IgnoreWarnings skips the file name check.
	IgnoreWarnings bool
	Region         string
}

// SyncResult counts what a sync changed.
type SyncResult struct {
	Uploaded  int
	Unchanged int
	Deleted   int
}

// Syncer mirrors a local directory into an S3 bucket and verifies the result.
type Syncer struct {
	newClients func(ctx context.Context, region string) (S3Client, S3Uploader, error)
}

// NewSyncer returns a Syncer using the default AWS configuration.
func NewSyncer() *Syncer {
	return &Syncer{newClients: newS3Clients}
}

// ParseS3URL splits "s3://bucket/prefix" into its bucket and prefix. The
// prefix may be empty.
func ParseS3URL(url string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(url, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: '%s'", errUtils.ErrInvalidSyncTarget, url)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%w: '%s' names no bucket", errUtils.ErrInvalidSyncTarget, url)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// Sync uploads the files under sourceDir that are missing from the bucket or
// differ from it, removes objects with no local file unless opts.UploadOnly is
// set, and then checks that every local file is in the bucket with its size.
func (s *Syncer) Sync(ctx context.Context, sourceDir, target string, opts SyncOptions) (*SyncResult, error) {
	bucket, prefix, err := ParseS3URL(target)
	if err != nil {
		return nil, err
	}
	files, err := localFiles(sourceDir)
	if err != nil {
		return nil, err
	}
	if !opts.IgnoreWarnings {
		if err := checkFileNames(sourceDir, files); err != nil {
			return nil, err
		}
	}

	client, uploader, err := s.newClients(ctx, opts.Region)
	if err != nil {
		return nil, err
	}
	result := &SyncResult{}
	if !opts.VerifyOnly {
		log.Info("Synchronizing directory", "dir", sourceDir, "url", target, "files", len(files))
		if err := s.push(ctx, client, uploader, bucket, prefix, sourceDir, files, opts, result); err != nil {
			return result, err
		}
	}
	if err := verifyUpload(ctx, client, bucket, prefix, sourceDir, files); err != nil {
		return result, fmt.Errorf("%w: %w", errUtils.ErrSyncVerifyFailed, err)
	}
	log.Info("Verified bucket contents", "url", target, "files", len(files))
	return result, nil
}

func (s *Syncer) push(ctx context.Context, client S3Client, uploader S3Uploader, bucket, prefix, root string, files []string, opts SyncOptions, result *SyncResult) error {
	remote, err := listObjects(ctx, client, bucket, prefix)
	if err != nil {
		return err
	}
	local := make(map[string]bool, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		key, err := objectKey(prefix, root, file)
		if err != nil {
			return err
		}
		local[key] = true
		info, err := os.Stat(file)
		if err != nil {
			return err
		}
		if obj, ok := remote[key]; ok && obj.Size == info.Size() && !info.ModTime().After(obj.Modified) {
			result.Unchanged++
			continue
		}
		log.Debug("Uploading", "file", file, "key", key)
		if err := uploadFile(ctx, uploader, bucket, key, file); err != nil {
			return err
		}
		result.Uploaded++
	}

	if opts.UploadOnly {
		return nil
	}
	extra := lo.Filter(lo.Keys(remote), func(key string, _ int) bool { return !local[key] })
	if len(extra) > 0 {
		log.Debug("Deleting objects with no local file", "bucket", bucket, "objects", len(extra))
		if err := deleteObjects(ctx, client, bucket, extra); err != nil {
			return err
		}
	}
	result.Deleted = len(extra)
	return nil
}

// localFiles lists the regular files under root.
func localFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUtils.ErrInvalidSyncSource, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", errUtils.ErrInvalidSyncSource, root)
	}
	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// checkFileNames rejects names that cannot become S3 keys unchanged.
func checkFileNames(root string, files []string) error {
	var bad []string
	for _, file := range files {
		rel, err := filepath.Rel(root, file)
		if err != nil {
			return err
		}
		if !utf8.ValidString(rel) {
			bad = append(bad, fmt.Sprintf("%q", rel))
		}
	}
	if len(bad) > 0 {
		err := fmt.Errorf("%w: %s", errUtils.ErrUnsafeFilename, strings.Join(bad, ", "))
		return errUtils.WithHint(err, "rename the files or pass --ignore-warnings to upload them anyway")
	}
	return nil
}
