package s3

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/relaynet/gateway/persistence/driver/aws/internal/awsx"
	"github.com/relaynet/gateway/persistence/objectstore"
)

// ObjectStore is an implementation of [objectstore.Store] that stores objects
// in an S3 bucket.
//
// S3 normalizes meta-data keys to lowercase, so callers should only use
// lowercase keys.
type ObjectStore struct {
	// Client is the S3 client to use.
	Client *s3.Client

	// Bucket is the name of the bucket in which objects are stored.
	Bucket string

	// DecorateGetObject is an optional function that is called before each S3
	// "GetObject" request.
	//
	// It may modify the API input in-place. It returns options that will be
	// applied to the request.
	DecorateGetObject func(*s3.GetObjectInput) []func(*s3.Options)

	// DecoratePutObject is an optional function that is called before each S3
	// "PutObject" request.
	//
	// It may modify the API input in-place. It returns options that will be
	// applied to the request.
	DecoratePutObject func(*s3.PutObjectInput) []func(*s3.Options)

	// DecorateDeleteObject is an optional function that is called before each
	// S3 "DeleteObject" request.
	//
	// It may modify the API input in-place. It returns options that will be
	// applied to the request.
	DecorateDeleteObject func(*s3.DeleteObjectInput) []func(*s3.Options)
}

var _ objectstore.Store = (*ObjectStore)(nil)

// Get returns the object associated with key.
func (s *ObjectStore) Get(ctx context.Context, key string) (objectstore.Object, bool, error) {
	out, err := awsx.Do(
		ctx,
		s.Client.GetObject,
		s.DecorateGetObject,
		&s3.GetObjectInput{
			Bucket: aws.String(s.Bucket),
			Key:    aws.String(key),
		},
	)
	if err != nil {
		if errors.As(err, new(*types.NoSuchKey)) {
			return objectstore.Object{}, false, nil
		}
		return objectstore.Object{}, false, err
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return objectstore.Object{}, false, err
	}

	return objectstore.Object{
		Body:     body,
		Metadata: out.Metadata,
	}, true, nil
}

// Put associates obj with key, replacing any existing object.
func (s *ObjectStore) Put(ctx context.Context, key string, obj objectstore.Object) error {
	_, err := awsx.Do(
		ctx,
		s.Client.PutObject,
		s.DecoratePutObject,
		&s3.PutObjectInput{
			Bucket:        aws.String(s.Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(obj.Body),
			ContentLength: aws.Int64(int64(len(obj.Body))),
			Metadata:      obj.Metadata,
		},
	)
	return err
}

// Delete removes the object associated with key.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	_, err := awsx.Do(
		ctx,
		s.Client.DeleteObject,
		s.DecorateDeleteObject,
		&s3.DeleteObjectInput{
			Bucket: aws.String(s.Bucket),
			Key:    aws.String(key),
		},
	)
	return err
}

// List invokes fn for each key that begins with prefix, in lexical order.
func (s *ObjectStore) List(ctx context.Context, prefix string, fn objectstore.ListFunc) error {
	pages := s3.NewListObjectsV2Paginator(
		s.Client,
		&s3.ListObjectsV2Input{
			Bucket: aws.String(s.Bucket),
			Prefix: aws.String(prefix),
		},
	)

	for pages.HasMorePages() {
		out, err := pages.NextPage(ctx)
		if err != nil {
			return err
		}

		for _, obj := range out.Contents {
			ok, err := fn(ctx, aws.ToString(obj.Key))
			if !ok || err != nil {
				return err
			}
		}
	}

	return nil
}

// CreateBucket creates the S3 bucket used by [ObjectStore].
//
// It is not an error if the bucket already exists and is owned by the caller.
func CreateBucket(
	ctx context.Context,
	client *s3.Client,
	bucket string,
) error {
	_, err := client.CreateBucket(
		ctx,
		&s3.CreateBucketInput{
			Bucket: aws.String(bucket),
		},
	)

	if errors.As(err, new(*types.BucketAlreadyOwnedByYou)) {
		return nil
	}

	return err
}
