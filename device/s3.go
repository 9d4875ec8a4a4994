package device

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 treats an object-storage bucket as the device: upload is a PutObject of
// the host buffer to a staging key, the device-internal transfer is a
// server-side CopyObject to a second key, and download is a GetObject of the
// copy read back into the host buffer. Works against AWS S3 and Cloudflare
// R2.
type S3 struct {
	client     *s3.Client
	bucketName string
	endpoint   string
	stageKey   string
	copyKey    string
	checked    bool
}

// NewS3 returns a backend against an AWS S3 bucket using the default
// credential chain.
func NewS3(ctx context.Context, region, bucketName, keyPrefix string) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &S3{
		client:     s3.NewFromConfig(cfg),
		bucketName: bucketName,
		endpoint:   fmt.Sprintf("https://s3.%s.amazonaws.com", region),
		stageKey:   keyPrefix + "-stage",
		copyKey:    keyPrefix + "-copy",
	}, nil
}

// NewR2 returns a backend against a Cloudflare R2 bucket with static
// credentials.
func NewR2(ctx context.Context, accountID, accessKeyID, secretAccessKey, bucketName, keyPrefix string) (*S3, error) {
	// R2 endpoint format: https://<ACCOUNT_ID>.r2.cloudflarestorage.com
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)

	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: endpoint,
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithEndpointResolverWithOptions(customResolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
		config.WithRegion("auto"), // R2 uses "auto" region
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &S3{
		client:     s3.NewFromConfig(cfg),
		bucketName: bucketName,
		endpoint:   endpoint,
		stageKey:   keyPrefix + "-stage",
		copyKey:    keyPrefix + "-copy",
	}, nil
}

func (d *S3) Label() string {
	return fmt.Sprintf("s3 (%s, bucket %s)", d.endpoint, d.bucketName)
}

// GetEndpoint returns the storage endpoint
func (d *S3) GetEndpoint() string {
	return d.endpoint
}

// Prepare checks the bucket once. Object storage needs no per-size
// allocation; oversized or throttled requests surface on the transfer
// itself.
func (d *S3) Prepare(ctx context.Context, size int) error {
	if d.checked {
		return nil
	}
	_, err := d.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(d.bucketName)})
	if err != nil {
		return errorf("prepare", KindInternal, "bucket %s: %w", d.bucketName, err)
	}
	d.checked = true
	return nil
}

// Begin issues one request against the bucket on its own goroutine and
// resolves the completion handle when the round trip finishes.
func (d *S3) Begin(ctx context.Context, dir Direction, host []byte) (Pending, error) {
	switch dir {
	case HostToDevice, DeviceToHost:
		if host == nil {
			return nil, errorf("begin", KindInvalid, "%s needs a host buffer", dir)
		}
	case DeviceToDevice:
	default:
		return nil, errorf("begin", KindInvalid, "unknown direction %d", int(dir))
	}

	p := newCompletion()
	switch dir {
	case HostToDevice:
		go func() {
			input := &s3.PutObjectInput{
				Bucket: aws.String(d.bucketName),
				Key:    aws.String(d.stageKey),
				Body:   bytes.NewReader(host),
			}
			_, err := d.client.PutObject(ctx, input)
			if err != nil {
				p.resolve(nil, fmt.Errorf("failed to upload object: %w", err))
				return
			}
			p.resolve(nil, nil)
		}()
	case DeviceToDevice:
		go func() {
			input := &s3.CopyObjectInput{
				Bucket:     aws.String(d.bucketName),
				Key:        aws.String(d.copyKey),
				CopySource: aws.String(d.bucketName + "/" + d.stageKey),
			}
			_, err := d.client.CopyObject(ctx, input)
			if err != nil {
				p.resolve(nil, fmt.Errorf("failed to copy object: %w", err))
				return
			}
			p.resolve(nil, nil)
		}()
	case DeviceToHost:
		go func() {
			input := &s3.GetObjectInput{
				Bucket: aws.String(d.bucketName),
				Key:    aws.String(d.copyKey),
			}
			result, err := d.client.GetObject(ctx, input)
			if err != nil {
				p.resolve(nil, fmt.Errorf("failed to get object: %w", err))
				return
			}
			defer result.Body.Close()
			if _, err := io.ReadFull(result.Body, host); err != nil {
				p.resolve(nil, fmt.Errorf("failed to read object body: %w", err))
				return
			}
			p.resolve(host, nil)
		}()
	}
	return p, nil
}

// Release is a no-op; the staging objects are reused across sizes.
func (d *S3) Release() {}

// Close deletes the staging objects.
func (d *S3) Close() error {
	ctx := context.Background()
	var firstErr error
	for _, key := range []string{d.stageKey, d.copyKey} {
		_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(d.bucketName),
			Key:    aws.String(key),
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
