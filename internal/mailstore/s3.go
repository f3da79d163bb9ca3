package mailstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store keeps messages as objects named prefix/mailbox/<uid>.eml. UIDs
// are assigned in increasing order per mailbox.
type S3Store struct {
	client S3API
	bucket string
	prefix string

	mu sync.Mutex
}

// OpenS3Store loads AWS configuration and returns a store for cfg.Bucket.
func OpenS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 store: bucket is required")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3Store(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix), nil
}

// NewS3Store returns a store using client.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (s *S3Store) mailboxPrefix(mailbox string) string {
	return path.Join(s.prefix, mailbox) + "/"
}

func (s *S3Store) key(mailbox string, uid uint32) string {
	return s.mailboxPrefix(mailbox) + fmt.Sprintf("%010d.eml", uid)
}

// Fetch downloads the object for uid.
func (s *S3Store) Fetch(ctx context.Context, mailbox string, uid uint32) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(mailbox, uid)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%s/%d: %w", mailbox, uid, ErrNotFound)
		}
		return nil, fmt.Errorf("fetching %s/%d: %w", mailbox, uid, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s/%d: %w", mailbox, uid, err)
	}
	return raw, nil
}

// Append uploads msg under the next free UID. Flags are kept as object
// metadata.
func (s *S3Store) Append(ctx context.Context, mailbox string, msg []byte, flags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	uid, err := s.nextUID(ctx, mailbox)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(mailbox, uid)),
		Body:        bytes.NewReader(msg),
		ContentType: aws.String("message/rfc822"),
	}
	if len(flags) > 0 {
		input.Metadata = map[string]string{"flags": strings.Join(flags, " ")}
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("appending to %s: %w", mailbox, err)
	}
	return nil
}

func (s *S3Store) nextUID(ctx context.Context, mailbox string) (uint32, error) {
	prefix := s.mailboxPrefix(mailbox)
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var last uint32
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("listing %s: %w", mailbox, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(obj.Key), prefix), ".eml")
			n, err := strconv.ParseUint(name, 10, 32)
			if err != nil {
				continue
			}
			last = max(last, uint32(n))
		}
	}
	return last + 1, nil
}

// Close is a no-op.
func (s *S3Store) Close() error {
	return nil
}
