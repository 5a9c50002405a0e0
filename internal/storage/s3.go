package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/video-transcript/internal/types"
)

// PutObjectAPI is the subset of the S3 client used by S3Uploader.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader pushes local files to an S3 bucket
type S3Uploader struct {
	client PutObjectAPI
	bucket string
	log    zerolog.Logger
}

// NewS3Uploader creates an uploader targeting bucket
func NewS3Uploader(client PutObjectAPI, bucket string, log zerolog.Logger) *S3Uploader {
	return &S3Uploader{
		client: client,
		bucket: bucket,
		log:    log,
	}
}

// Bucket returns the target bucket name.
func (u *S3Uploader) Bucket() string { return u.bucket }

// Upload stores the file at filePath under key (the file's base name when
// empty) and returns its s3://bucket/key URI.
//
// On success the local file is deleted; a failed delete is logged only.
// On failure the local file is left in place.
func (u *S3Uploader) Upload(ctx context.Context, filePath, key string) (string, error) {
	if key == "" {
		key = filepath.Base(filePath)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", types.ErrUpload, filePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: stat %s: %v", types.ErrUpload, filePath, err)
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("audio/mpeg"),
	})
	if err != nil {
		u.log.Error().Err(err).Str("key", key).Msg("Failed to upload file to S3")
		return "", fmt.Errorf("%w: failed to upload file to S3: %v", types.ErrUpload, err)
	}

	uri := fmt.Sprintf("s3://%s/%s", u.bucket, key)
	u.log.Info().Str("key", key).Str("uri", uri).Msg("File uploaded")

	f.Close()
	if err := os.Remove(filePath); err != nil {
		u.log.Warn().Err(err).Str("path", filePath).Msg("Failed to delete local file after upload")
	} else {
		u.log.Info().Str("path", filePath).Msg("Local file deleted")
	}

	return uri, nil
}
