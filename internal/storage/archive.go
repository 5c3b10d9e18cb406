// internal/storage/archive.go

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"

	"github.com/imadgeboyega/heartwing-backend/internal/butterfly"
)

const archiveFolder = "heart-sync"

// SessionDocument is the archived form of one heart sync session.
type SessionDocument struct {
	MatchID    int64                   `json:"match_id"`
	SessionID  string                  `json:"session_id"`
	ArchivedAt time.Time               `json:"archived_at"`
	Samples    []butterfly.HeartSample `json:"samples"`
}

// objectKey is heart-sync/<match>/<session>.json. Session ids come from
// clients, so anything that is not a UUID is replaced by a stable
// name-based UUID.
func objectKey(matchID int64, sessionID string) string {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(sessionID))
	}
	return path.Join(archiveFolder, fmt.Sprintf("%d", matchID), id.String()+".json")
}

func encodeSession(matchID int64, sessionID string, samples []butterfly.HeartSample, now time.Time) ([]byte, error) {
	doc := SessionDocument{
		MatchID:    matchID,
		SessionID:  sessionID,
		ArchivedAt: now.UTC(),
		Samples:    samples,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return data, nil
}

// LocalArchive writes session documents under a directory
type LocalArchive struct {
	dir   string
	clock func() time.Time
}

// NewLocalArchive creates a new local archive
func NewLocalArchive(dir string) *LocalArchive {
	return &LocalArchive{dir: dir, clock: time.Now}
}

// Archive stores the samples and returns the file path
func (a *LocalArchive) Archive(ctx context.Context, matchID int64, sessionID string, samples []butterfly.HeartSample) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := encodeSession(matchID, sessionID, samples, a.clock())
	if err != nil {
		return "", err
	}

	filePath := filepath.Join(a.dir, filepath.FromSlash(objectKey(matchID, sessionID)))
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write archive: %w", err)
	}
	return filePath, nil
}

// Load reads an archived session back
func (a *LocalArchive) Load(matchID int64, sessionID string) (*SessionDocument, error) {
	data, err := os.ReadFile(filepath.Join(a.dir, filepath.FromSlash(objectKey(matchID, sessionID))))
	if err != nil {
		return nil, err
	}
	var doc SessionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode archive: %w", err)
	}
	return &doc, nil
}

// S3Archive implements the archive on AWS S3
type S3Archive struct {
	s3Client s3iface.S3API
	bucket   string
	clock    func() time.Time
}

// NewS3Archive creates a new S3 archive
func NewS3Archive(bucket, region string) (*S3Archive, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return newS3Archive(s3.New(sess), bucket), nil
}

func newS3Archive(client s3iface.S3API, bucket string) *S3Archive {
	return &S3Archive{s3Client: client, bucket: bucket, clock: time.Now}
}

// Archive uploads the samples and returns the s3:// location
func (a *S3Archive) Archive(ctx context.Context, matchID int64, sessionID string, samples []butterfly.HeartSample) (string, error) {
	data, err := encodeSession(matchID, sessionID, samples, a.clock())
	if err != nil {
		return "", err
	}

	key := objectKey(matchID, sessionID)
	_, err = a.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(a.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(data),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: aws.String(s3.ServerSideEncryptionAes256),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}
