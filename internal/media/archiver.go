// Package media archives inbound MMS attachments to S3. Provider-hosted
// media URLs expire after a retention window, so attachments are copied
// out shortly after the webhook delivers them.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/copperline/barback/internal/config"
	"github.com/copperline/barback/internal/pkg/httpretry"
	"github.com/copperline/barback/internal/pkg/logger"
)

// maxAttachmentBytes caps a single download. MMS attachments top out
// around 5 MB; anything larger is a misbehaving URL.
const maxAttachmentBytes = 16 << 20

// MessageStore records where a message's attachments were archived.
type MessageStore interface {
	SetArchivedMedia(ctx context.Context, id string, keys []string) error
}

// Archiver copies provider-hosted media into an S3 bucket and records
// the object keys on the source message.
type Archiver struct {
	s3Client   *s3.Client
	bucket     string
	messages   MessageStore
	httpClient httpretry.HTTPDoer
	authUser   string
	authPass   string
}

// NewArchiver creates an S3-backed archiver. Media fetches authenticate
// with the telephony account credentials; provider media URLs require
// them once media access protection is enabled.
func NewArchiver(ctx context.Context, cfg appconfig.StorageConfig, tw appconfig.TwilioConfig, messages MessageStore) (*Archiver, error) {
	var awsCfg aws.Config
	var err error

	if profile := cfg.GetAWSProfile(); profile != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.AWSRegion),
			awsconfig.WithSharedConfigProfile(profile),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.AWSRegion),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &Archiver{
		s3Client:   s3.NewFromConfig(awsCfg),
		bucket:     cfg.S3Bucket,
		messages:   messages,
		httpClient: httpretry.NewRetryClient(&http.Client{Timeout: 30 * time.Second}, 2),
		authUser:   tw.AccountSID,
		authPass:   tw.AuthToken,
	}, nil
}

// Archive downloads each media URL, uploads it to S3 under the message
// ID, and records the resulting keys. Individual attachment failures are
// logged and skipped; the error reports the first failure once the rest
// have been archived.
func (a *Archiver) Archive(ctx context.Context, messageID string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	var keys []string
	var firstErr error
	for i, mediaURL := range urls {
		key, err := a.archiveOne(ctx, messageID, i, mediaURL)
		if err != nil {
			logger.Warn("Media archive failed", "message_id", messageID, "url_index", i, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		keys = append(keys, key)
	}

	if len(keys) > 0 {
		if err := a.messages.SetArchivedMedia(ctx, messageID, keys); err != nil {
			return fmt.Errorf("recording archived media: %w", err)
		}
		logger.Info("Archived media", "message_id", messageID, "count", len(keys))
	}
	if firstErr != nil {
		return fmt.Errorf("archiving media for message %s: %w", messageID, firstErr)
	}
	return nil
}

func (a *Archiver) archiveOne(ctx context.Context, messageID string, index int, mediaURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	if a.authUser != "" {
		req.SetBasicAuth(a.authUser, a.authPass)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching media: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentBytes))
	if err != nil {
		return "", fmt.Errorf("reading media body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	key := objectKey(messageID, index, contentType)

	_, err = a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("putting object to S3: %w", err)
	}

	return key, nil
}

// objectKey builds a stable, listing-friendly key per attachment.
func objectKey(messageID string, index int, contentType string) string {
	return fmt.Sprintf("media/%s/%02d%s", messageID, index, extensionFor(contentType))
}

// extensionFor maps the attachment content types MMS actually carries.
func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "video/mp4":
		return ".mp4"
	case "audio/mpeg":
		return ".mp3"
	case "audio/amr":
		return ".amr"
	case "text/vcard", "text/x-vcard":
		return ".vcf"
	default:
		return ".bin"
	}
}
