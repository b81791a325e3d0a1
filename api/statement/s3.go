package statement

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	stmtDefaultBucket = "ibimina"
	stmtS3Prefix      = "statements/"
	stmtDefaultRegion = "af-south-1"
)

func stmtBucket() string {
	if b := strings.TrimSpace(os.Getenv("STMT_S3_BUCKET")); b != "" {
		return b
	}
	return stmtDefaultBucket
}

func stmtRegion() string {
	if r := strings.TrimSpace(os.Getenv("STMT_S3_REGION")); r != "" {
		return r
	}
	return stmtDefaultRegion
}

// stmtS3Enabled reads STMT_S3_ENABLED to decide whether original statement
// files are archived to S3. Defaults to false when unset: archival is an
// opt-in audit feature, imports never depend on it.
func stmtS3Enabled() bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv("STMT_S3_ENABLED")))
	return v == "1" || v == "true" || v == "yes"
}

func fileHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func sanitizePathSegment(s string) string {
	if s == "" {
		return "unknown"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_")
	return replacer.Replace(s)
}

func buildStatementS3Key(saccoID, hash, fileExt string) string {
	ext := strings.TrimSpace(fileExt)
	if ext == "" {
		ext = ".bin"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s%s/%s%s", stmtS3Prefix, sanitizePathSegment(saccoID), hash, ext)
}

func detectContentType(data []byte) string {
	if len(data) == 0 {
		return "application/octet-stream"
	}
	if len(data) > 512 {
		return http.DetectContentType(data[:512])
	}
	return http.DetectContentType(data)
}

func archiveStatementToS3(ctx context.Context, key string, body []byte, contentType string) error {
	bucket := stmtBucket()
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(stmtRegion()))
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("archive to s3 (bucket %s, key %s): %w", bucket, key, err)
	}
	return nil
}
