package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/fiambond/attachments/internal/config"
)

// usEast1 is the one region where CreateBucket must not carry a location constraint.
const usEast1 = "us-east-1"

// S3Gateway implements Gateway with the AWS SDK v2. Requests use path-style
// addressing against BaseEndpoint so emulators like LocalStack work unchanged.
type S3Gateway struct {
	client     *s3.Client
	presigner  *s3.PresignClient
	publicBase string
	presign    bool
	presignTTL time.Duration
}

// NewS3Gateway loads an AWS config with static credentials and builds the client.
func NewS3Gateway(ctx context.Context, cfg config.Storage) (*S3Gateway, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint, cfg.UseSSL))
		o.UsePathStyle = true
		// Emulators lag behind the SDK's default CRC checksums.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &S3Gateway{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		publicBase: cfg.PublicBase,
		presign:    cfg.URLMode == config.URLModePresigned,
		presignTTL: cfg.PresignTTL,
	}, nil
}

// EnsureBucket creates bucket in region, treating BucketAlreadyOwnedByYou as
// success. In public URL mode the bucket gets a public-read policy.
func (g *S3Gateway) EnsureBucket(ctx context.Context, bucket, region string) (EnsureResult, error) {
	in := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if region != "" && region != usEast1 {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}

	res := Created
	if _, err := g.client.CreateBucket(ctx, in); err != nil {
		if !isBucketOwned(err) {
			return 0, storeErr(fmt.Sprintf("create bucket %q", bucket), err)
		}
		res = AlreadyOwned
	}

	if !g.presign {
		_, err := g.client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
			Bucket: aws.String(bucket),
			Policy: aws.String(publicReadPolicy(bucket)),
		})
		if err != nil {
			return 0, storeErr(fmt.Sprintf("set policy on bucket %q", bucket), err)
		}
	}
	return res, nil
}

// PutObject uploads data under key with the given content type.
func (g *S3Gateway) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return storeErr(fmt.Sprintf("put object %q", key), err)
	}
	return nil
}

// UploadFile uploads the file at path under objectName.
func (g *S3Gateway) UploadFile(ctx context.Context, bucket, path, objectName string) error {
	contentType, err := detectFileType(path)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %q: %w", path, err)
	}

	_, err = g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(objectName),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return storeErr(fmt.Sprintf("upload %q", path), err)
	}
	return nil
}

// ListObjects pages through ListObjectsV2.
func (g *S3Gateway) ListObjects(ctx context.Context, bucket string) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		p := s3.NewListObjectsV2Paginator(g.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(bucket),
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				yield(ObjectInfo{}, storeErr(fmt.Sprintf("list bucket %q", bucket), err))
				return
			}
			for _, obj := range page.Contents {
				if !yield(ObjectInfo{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}, nil) {
					return
				}
			}
		}
	}
}

// ListBuckets lists all buckets visible to the credentials.
func (g *S3Gateway) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	out, err := g.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, storeErr("list buckets", err)
	}
	buckets := make([]BucketInfo, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		buckets = append(buckets, BucketInfo{
			Name:      aws.ToString(b.Name),
			CreatedAt: aws.ToTime(b.CreationDate),
		})
	}
	return buckets, nil
}

// ObjectURL returns a presigned GET URL in presigned mode, otherwise the
// public URL under the configured base.
func (g *S3Gateway) ObjectURL(ctx context.Context, bucket, key string) (string, error) {
	if !g.presign {
		return publicURL(g.publicBase, key), nil
	}
	req, err := g.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(g.presignTTL))
	if err != nil {
		return "", storeErr(fmt.Sprintf("presign %q", key), err)
	}
	return req.URL, nil
}

func isBucketOwned(err error) bool {
	var owned *types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == bucketOwnedCode
}
