package filestorage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"

	"github.com/cozy-creator/img2img/internal/config"
)

type S3FileStorage struct {
	client *s3.Client
	cfg    *config.S3Config
}

func NewS3FileStorage(ctx context.Context, cfg *config.S3Config) (*S3FileStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("s3 config is not set")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	credentialsProvider := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	awsCfg, err := awsConfig.LoadDefaultConfig(
		ctx,
		awsConfig.WithRegion(region),
		awsConfig.WithCredentialsProvider(credentialsProvider),
	)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointUrl != "" {
			o.BaseEndpoint = &cfg.EndpointUrl
		}
	})

	return &S3FileStorage{
		client: s3Client,
		cfg:    cfg,
	}, nil
}

func (u *S3FileStorage) Upload(ctx context.Context, file FileInfo) (string, error) {
	if err := validate(file); err != nil {
		return "", err
	}

	key := u.objectKey(file)
	mtype := mimetype.Detect(file.Content).String()

	input := s3.PutObjectInput{
		Key:         &key,
		ContentType: &mtype,
		Bucket:      &u.cfg.Bucket,
		Body:        bytes.NewReader(file.Content),
		ACL:         types.ObjectCannedACLPublicRead,
	}
	if _, err := u.client.PutObject(ctx, &input); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return PublicURL(u.cfg, key)
}

func (u *S3FileStorage) objectKey(file FileInfo) string {
	folder := strings.Trim(u.cfg.Folder, "/")
	if folder == "" {
		return file.Filename()
	}

	return fmt.Sprintf("%s/%s", folder, file.Filename())
}

// PublicURL infers the public address of key for common S3-compatible hosts.
func PublicURL(cfg *config.S3Config, key string) (string, error) {
	if cfg.VanityUrl != "" {
		return fmt.Sprintf("%s/%s", strings.TrimSuffix(cfg.VanityUrl, "/"), key), nil
	}

	switch {
	case strings.Contains(cfg.EndpointUrl, "digitaloceanspaces.com"):
		return fmt.Sprintf("https://%s.%s.cdn.digitaloceanspaces.com/%s", cfg.Bucket, cfg.Region, key), nil
	case strings.Contains(cfg.EndpointUrl, "amazonaws.com"):
		endpoint := strings.TrimPrefix(cfg.EndpointUrl, "https://")
		endpoint = strings.TrimSuffix(endpoint, "/")
		return fmt.Sprintf("https://%s.%s/%s", cfg.Bucket, endpoint, key), nil
	default:
		return "", fmt.Errorf("cannot infer public url for endpoint %q, set s3.vanity_url", cfg.EndpointUrl)
	}
}
