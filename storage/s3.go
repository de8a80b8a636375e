package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"paper-tracker/config"
	"paper-tracker/models"
	"paper-tracker/providers"
)

// NewS3Client creates an S3 client for an S3-compatible endpoint.
func NewS3Client(cfg *config.Config) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.DocS3URL,
				SigningRegion:     cfg.DocS3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.DocS3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.DocS3Key, cfg.DocS3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// S3Store keeps one JSON object per paper under papers/<id>.json.
type S3Store struct {
	Client *s3.Client
	Bucket string
}

// NewS3Store builds the store on top of an existing client.
func NewS3Store(client *s3.Client, bucket string) *S3Store {
	return &S3Store{Client: client, Bucket: bucket}
}

func (s *S3Store) key(paperID string) string {
	return fmt.Sprintf("papers/%s.json", providers.SanitizeID(paperID))
}

// Save writes the document, replacing any previous version.
func (s *S3Store) Save(ctx context.Context, doc *models.PaperDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	key := s.key(doc.PaperID)
	_, err = s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.Bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return err
}

// Load reads the document, (nil, nil) when absent.
func (s *S3Store) Load(ctx context.Context, paperID string) (*models.PaperDocument, error) {
	key := s.key(paperID)
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.Bucket,
		Key:    &key,
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil
		}
		return nil, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	var doc models.PaperDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", paperID, err)
	}
	return &doc, nil
}

// Delete removes the document. S3 delete of a missing key succeeds.
func (s *S3Store) Delete(ctx context.Context, paperID string) error {
	key := s.key(paperID)
	_, err := s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.Bucket,
		Key:    &key,
	})
	return err
}

var _ DocStore = (*S3Store)(nil)
