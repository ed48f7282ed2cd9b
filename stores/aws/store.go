package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ayukmr/lixel-server/core"
	"github.com/sirupsen/logrus"
)

// objectAPI is the subset of the S3 client the store needs.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// s3Store keeps the collection as one object. PutObject replaces an object in a single
// step, so readers never observe a partially uploaded document.
type s3Store struct {
	s3Client objectAPI
	bucket   string
	key      string
}

// NewStore creates a new S3-based store using the default AWS credential chain.
func NewStore(ctx context.Context, bucketName, key string) (*s3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return newStoreWithClient(s3.NewFromConfig(cfg), bucketName, key)
}

func newStoreWithClient(client objectAPI, bucketName, key string) (*s3Store, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("s3 store: bucket name is required")
	}
	if key == "" {
		return nil, fmt.Errorf("s3 store: object key is required")
	}
	return &s3Store{s3Client: client, bucket: bucketName, key: key}, nil
}

func (s *s3Store) Load(ctx context.Context) (*core.Collection, error) {
	log := logrus.WithFields(logrus.Fields{"bucket": s.bucket, "key": s.key})

	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			log.Debug("Collection object does not exist yet, starting empty")
			return core.NewCollection(), nil
		}
		log.WithError(err).Error("Failed to get collection object")
		return nil, fmt.Errorf("%w: get object %s: %w", core.ErrStorageUnavailable, s.key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithError(err).Error("Failed to read collection object")
		return nil, fmt.Errorf("%w: read object %s: %w", core.ErrStorageUnavailable, s.key, err)
	}

	collection, err := core.DecodeCollection(data)
	if err != nil {
		log.WithError(err).Error("Collection object is corrupt")
		return nil, err
	}
	return collection, nil
}

func (s *s3Store) Save(ctx context.Context, collection *core.Collection) error {
	data, err := core.EncodeCollection(collection)
	if err != nil {
		return err
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		logrus.WithError(err).WithField("key", s.key).Error("Failed to put collection object")
		return fmt.Errorf("%w: put object %s: %w", core.ErrStorageUnavailable, s.key, err)
	}
	return nil
}
