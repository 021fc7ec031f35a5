package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// partSize is the size of every part in the multipart upload except
// possibly the last, matching the original agent's S3 provider.
const partSize = 100 * 1024 * 1024

type s3Provider struct {
	client *s3.Client
	bucket string
}

func newS3Provider(cfg Config) (*s3Provider, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}

	ctx := context.Background()
	var awsCfg aws.Config
	var err error

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithCredentialsProvider(creds),
			awsconfig.WithRegion(cfg.Region))
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("s3: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
	})

	return &s3Provider{client: client, bucket: cfg.Bucket}, nil
}

func (p *s3Provider) Name() string { return "s3" }

func (p *s3Provider) Upload(ctx context.Context, r io.Reader, remotePath, generatedID string, size int64) (string, int64, error) {
	key := remotePath

	created, err := p.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", 0, fmt.Errorf("s3: CreateMultipartUpload: %w", err)
	}
	uploadID := created.UploadId

	var parts []types.CompletedPart
	var partNumber int32 = 1
	var totalSize int64

	abort := func(cause error) (string, int64, error) {
		_, abortErr := p.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(p.bucket),
			Key:      aws.String(key),
			UploadId: uploadID,
		})
		if abortErr != nil {
			return "", 0, fmt.Errorf("%w (and abort also failed: %v)", cause, abortErr)
		}
		return "", 0, cause
	}

	buf := make([]byte, partSize)
	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			out, err := p.client.UploadPart(ctx, &s3.UploadPartInput{
				Bucket:     aws.String(p.bucket),
				Key:        aws.String(key),
				UploadId:   uploadID,
				PartNumber: aws.Int32(partNumber),
				Body:       bytes.NewReader(buf[:n]),
			})
			if err != nil {
				return abort(fmt.Errorf("s3: UploadPart %d: %w", partNumber, err))
			}
			parts = append(parts, types.CompletedPart{
				ETag:       out.ETag,
				PartNumber: aws.Int32(partNumber),
			})
			totalSize += int64(n)
			partNumber++
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return abort(fmt.Errorf("s3: read source stream: %w", readErr))
		}
	}

	if len(parts) == 0 {
		return abort(fmt.Errorf("s3: refusing to complete an empty upload"))
	}

	_, err = p.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(p.bucket),
		Key:      aws.String(key),
		UploadId: uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: parts,
		},
	})
	if err != nil {
		return abort(fmt.Errorf("s3: CompleteMultipartUpload: %w", err))
	}

	return key, totalSize, nil
}
