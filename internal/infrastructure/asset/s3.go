package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ObjectAPI is the slice of the S3 client the writer needs.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type S3Writer struct {
	Client        ObjectAPI
	Bucket        string
	Prefix        string
	PublicBaseURL string
}

// NewS3Client loads credentials and region from the default AWS chain. A
// non-empty endpoint points the client at an S3-compatible store such as
// LocalStack or MinIO.
func NewS3Client(ctx context.Context, endpoint string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewS3Writer(client ObjectAPI, bucket, prefix, publicBaseURL string) *S3Writer {
	return &S3Writer{Client: client, Bucket: bucket, Prefix: prefix, PublicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (w *S3Writer) key(orderID string) string {
	return w.Prefix + invoiceName(orderID)
}

func (w *S3Writer) SaveInvoice(ctx context.Context, orderID string, data []byte) (string, error) {
	key := w.key(orderID)
	_, err := w.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", w.Bucket, key, err)
	}
	if w.PublicBaseURL == "" {
		return "s3://" + w.Bucket + "/" + key, nil
	}
	return w.PublicBaseURL + "/" + key, nil
}

func (w *S3Writer) LoadInvoice(ctx context.Context, orderID string) ([]byte, error) {
	key := w.key(orderID)
	out, err := w.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(w.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("s3://%s/%s: %w", w.Bucket, key, fs.ErrNotExist)
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
