package extend

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/action"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/peer"
	"github.com/cedar-backup/cback/pkg/runner"
	"github.com/cedar-backup/cback/pkg/schema"
	"github.com/cedar-backup/cback/pkg/staging"
)

// deleteBatchSize is the most keys one DeleteObjects call accepts.
const deleteBatchSize = 1000

func init() {
	MustRegister("amazons3", "execute", func(runner.CommandRunner) action.Action {
		return &amazonS3{newClients: newS3Clients}
	})
}

// S3Client is the part of the S3 API used to replace and verify uploads.
type S3Client interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Uploader uploads one object, in parts when it is large.
type S3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

func newS3Clients(ctx context.Context, region string) (S3Client, S3Uploader, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	client := s3.NewFromConfig(awsConfig)
	return client, manager.NewUploader(client), nil
}

// amazonS3 copies the day's staging directory to an S3 bucket in place of
// writing it to media.
type amazonS3 struct {
	newClients func(ctx context.Context, region string) (S3Client, S3Uploader, error)
}

func (a *amazonS3) Execute(ctx context.Context, _ string, opts *schema.RunOptions, cfg *schema.Configuration) error {
	log.Debug("Executing extended action", "action", "amazons3")
	if cfg == nil || cfg.Options == nil || cfg.Stage == nil || cfg.AmazonS3 == nil {
		return fmt.Errorf("%w: amazons3 needs the options, stage and amazons3 sections", errUtils.ErrMissingSection)
	}
	s3cfg := cfg.AmazonS3
	if s3cfg.Bucket == "" {
		return fmt.Errorf("%w: amazons3 bucket must be set", errUtils.ErrInvalidConfig)
	}
	full := opts != nil && opts.Full

	dir, err := staging.FindStoreDir(cfg.Stage.TargetDir, now(), full)
	if err != nil {
		return err
	}
	files, err := staging.BackupFiles(dir.Path)
	if err != nil {
		return err
	}
	if err := applySizeLimit(s3cfg, full || staging.IsStartOfWeek(cfg.Options.StartingDay, now()), files); err != nil {
		return err
	}

	client, uploader, err := a.newClients(ctx, s3cfg.Region)
	if err != nil {
		return err
	}
	prefix := strings.Trim(path.Join(s3cfg.Prefix, dir.Suffix), "/")
	log.Debug("Uploading staging directory", "dir", dir.Path, "url", "s3://"+s3cfg.Bucket+"/"+prefix)

	if err := clearPrefix(ctx, client, s3cfg.Bucket, prefix); err != nil {
		return err
	}
	if err := uploadFiles(ctx, uploader, s3cfg.Bucket, prefix, dir.Path, files); err != nil {
		return err
	}
	if err := verifyUpload(ctx, client, s3cfg.Bucket, prefix, dir.Path, files); err != nil {
		return err
	}

	if err := staging.WriteIndicator(dir.Path, peer.StoreIndicator, cfg.Options.BackupUser, cfg.Options.BackupGroup); err != nil {
		return err
	}
	log.Info("Executed extended action successfully", "action", "amazons3")
	return nil
}

// applySizeLimit enforces the full limit on full runs and the incremental
// limit otherwise. A zero limit means no limit.
func applySizeLimit(cfg *schema.AmazonS3Config, fullRun bool, files []string) error {
	limit := cfg.IncrSizeLimit
	if fullRun {
		limit = cfg.FullSizeLimit
	}
	if limit <= 0 {
		log.Debug("No Amazon S3 size limit applies")
		return nil
	}
	total, err := staging.TotalSize(files)
	if err != nil {
		return err
	}
	log.Debug("Amazon S3 backup size", "size", humanize.IBytes(uint64(total)), "limit", humanize.IBytes(uint64(limit)))
	if total > limit {
		return fmt.Errorf("%w: %s > %s", errUtils.ErrUploadLimit, humanize.IBytes(uint64(total)), humanize.IBytes(uint64(limit)))
	}
	log.Info("Total size does not exceed Amazon S3 size limit")
	return nil
}

// remoteObject is what a bucket listing says about one object.
type remoteObject struct {
	Size     int64
	Modified time.Time
}

// listObjects lists every object under prefix, or the whole bucket when
// prefix is empty.
func listObjects(ctx context.Context, client S3Client, bucket, prefix string) (map[string]remoteObject, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix + "/")
	}
	objects := make(map[string]remoteObject)
	pages := s3.NewListObjectsV2Paginator(client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: listing s3://%s/%s: %w", errUtils.ErrUploadFailed, bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			objects[aws.ToString(obj.Key)] = remoteObject{Size: aws.ToInt64(obj.Size), Modified: aws.ToTime(obj.LastModified)}
		}
	}
	return objects, nil
}

// clearPrefix removes an earlier upload of the same day.
func clearPrefix(ctx context.Context, client S3Client, bucket, prefix string) error {
	existing, err := listObjects(ctx, client, bucket, prefix)
	if err != nil {
		return err
	}
	if err := deleteObjects(ctx, client, bucket, lo.Keys(existing)); err != nil {
		return err
	}
	log.Debug("Cleared existing backup", "bucket", bucket, "prefix", prefix, "objects", len(existing))
	return nil
}

func deleteObjects(ctx context.Context, client S3Client, bucket string, keys []string) error {
	for _, batch := range lo.Chunk(keys, deleteBatchSize) {
		out, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{
				Objects: lo.Map(batch, func(k string, _ int) types.ObjectIdentifier {
					return types.ObjectIdentifier{Key: aws.String(k)}
				}),
				Quiet: aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("%w: deleting from s3://%s: %w", errUtils.ErrUploadFailed, bucket, err)
		}
		if len(out.Errors) > 0 {
			return fmt.Errorf("%w: could not delete %d objects from s3://%s", errUtils.ErrUploadFailed, len(out.Errors), bucket)
		}
	}
	return nil
}

func objectKey(prefix, root, file string) (string, error) {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return "", err
	}
	if prefix == "" {
		return filepath.ToSlash(rel), nil
	}
	return prefix + "/" + filepath.ToSlash(rel), nil
}

func uploadFiles(ctx context.Context, uploader S3Uploader, bucket, prefix, root string, files []string) error {
	for _, file := range files {
		key, err := objectKey(prefix, root, file)
		if err != nil {
			return err
		}
		if err := uploadFile(ctx, uploader, bucket, key, file); err != nil {
			return err
		}
	}
	log.Debug("Uploaded staging directory", "dir", root, "files", len(files))
	return nil
}

func uploadFile(ctx context.Context, uploader S3Uploader, bucket, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errUtils.ErrUploadFailed, file, err)
	}
	return nil
}

// verifyUpload checks that every local file exists in the bucket with the
// same size.
func verifyUpload(ctx context.Context, client S3Client, bucket, prefix, root string, files []string) error {
	uploaded, err := listObjects(ctx, client, bucket, prefix)
	if err != nil {
		return err
	}
	for _, file := range files {
		key, err := objectKey(prefix, root, file)
		if err != nil {
			return err
		}
		info, err := os.Stat(file)
		if err != nil {
			return err
		}
		obj, ok := uploaded[key]
		if !ok {
			return fmt.Errorf("%w: %s was apparently not uploaded", errUtils.ErrUploadFailed, file)
		}
		if obj.Size != info.Size() {
			return fmt.Errorf("%w: %s is %d bytes but %d bytes were uploaded", errUtils.ErrUploadFailed, file, info.Size(), obj.Size)
		}
	}
	log.Debug("Verified upload", "dir", root, "bucket", bucket, "prefix", prefix)
	return nil
}
