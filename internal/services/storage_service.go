// internal/services/storage_service.go
package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"github.com/tonytran1984vn/trustchecker/internal/config"
)

const maxEvidenceBytes = 5 * 1024 * 1024

// StorageService stores scan evidence images captured by mobile scanners.
type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
}

type UploadResult struct {
	URL  string `json:"url"`
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	if cfg.AWS.AccessKeyID == "" {
		// Return service without S3 for local development
		return &StorageService{config: cfg}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   cfg,
	}, nil
}

// UploadScanEvidence stores a base64-encoded evidence image under the scan
// id. Returns nil without error when storage is not configured.
func (s *StorageService) UploadScanEvidence(scanID uuid.UUID, imageData string) (*UploadResult, error) {
	if s.s3Client == nil {
		return nil, nil
	}

	// Strip a data URL prefix if present.
	if idx := strings.Index(imageData, ";base64,"); idx >= 0 {
		imageData = imageData[idx+len(";base64,"):]
	}

	decoded, err := base64.StdEncoding.DecodeString(imageData)
	if err != nil {
		return nil, fmt.Errorf("invalid evidence image data: %w", err)
	}
	if len(decoded) > maxEvidenceBytes {
		return nil, fmt.Errorf("evidence image %d bytes exceeds maximum %d bytes", len(decoded), maxEvidenceBytes)
	}

	key := fmt.Sprintf("scan-evidence/%s.jpg", scanID)

	_, err = s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(s.config.AWS.S3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(decoded),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload evidence to S3: %w", err)
	}

	url := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.config.AWS.S3Bucket, s.config.AWS.Region, key)
	if s.config.AWS.CloudFrontURL != "" {
		url = fmt.Sprintf("%s/%s", strings.TrimRight(s.config.AWS.CloudFrontURL, "/"), key)
	}

	return &UploadResult{
		URL:  url,
		Key:  key,
		Size: int64(len(decoded)),
	}, nil
}
