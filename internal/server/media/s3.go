// Package media issues presigned S3 URLs for profile and cover images.
// The credential core never proxies image bytes; clients upload and fetch
// directly against object storage and the principal record keeps only the
// {URL, PublicID} reference.
package media

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	sc "github.com/confideapp/confide/internal/server/config"
	"github.com/confideapp/confide/internal/server/models"
)

const presignExpiry = 15 * time.Minute

// seams for testing the AWS SDK calls
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Upload is a presigned PUT slot: the client uploads to URL and the
// resulting asset is referenced by Ref afterwards.
type Upload struct {
	URL string
	Ref models.ImageRef
}

// Store issues presigned URLs against one bucket.
type Store struct {
	config *sc.Config
}

func NewStore(config *sc.Config) *Store {
	return &Store{config: config}
}

// randomStorageKey scatters uploads by date so no prefix gets hot.
func randomStorageKey(principalID string) string {
	d := time.Now()
	return fmt.Sprintf("images/%d/%d/%d/%s/%v", d.Year(), d.Month(), d.Day(), principalID, uuid.New())
}

func (s *Store) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}

// PresignUpload returns a presigned PUT for a fresh storage key under the
// principal's prefix.
func (s *Store) PresignUpload(ctx context.Context, principalID string) (*Upload, error) {
	presignClient, err := s.getPresignClient()
	if err != nil {
		return nil, err
	}

	bucket := s.config.S3Bucket
	key := randomStorageKey(principalID)

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return nil, err
	}

	return &Upload{
		URL: req.URL,
		Ref: models.ImageRef{URL: s.config.S3BaseEndpoint + bucket + "/" + key, PublicID: key},
	}, nil
}

// PresignDownload returns a presigned GET for a previously uploaded asset.
func (s *Store) PresignDownload(ctx context.Context, publicID string) (string, error) {
	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &publicID,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
