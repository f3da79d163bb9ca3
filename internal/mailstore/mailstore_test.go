package mailstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sentMessage = "From: Alice <alice@x.org>\r\nTo: bob@x.org\r\nSubject: hi\r\n\r\nbody line\r\n"

func TestMboxStore_AppendThenFetch(t *testing.T) {
	s := NewMboxStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "Sent", []byte(sentMessage), []string{FlagSeen}))
	require.NoError(t, s.Append(ctx, "Sent", []byte(strings.Replace(sentMessage, "hi", "second", 1)), nil))

	first, err := s.Fetch(ctx, "Sent", 1)
	require.NoError(t, err)
	assert.Contains(t, string(first), "Subject: hi\r\n")
	assert.Contains(t, string(first), "Status: RO\r\n")
	assert.Contains(t, string(first), "body line")

	second, err := s.Fetch(ctx, "Sent", 2)
	require.NoError(t, err)
	assert.Contains(t, string(second), "Subject: second\r\n")
	assert.NotContains(t, string(second), "Status: RO")

	_, err = s.Fetch(ctx, "Sent", 3)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMboxStore_HierarchicalMailbox(t *testing.T) {
	s := NewMboxStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "Archive/2024", []byte(sentMessage), nil))
	raw, err := s.Fetch(ctx, "Archive/2024", 1)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "To: bob@x.org")
}

func TestMboxStore_MissingMailbox(t *testing.T) {
	s := NewMboxStore(t.TempDir())
	_, err := s.Fetch(context.Background(), "INBOX", 1)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMboxStore_RejectsEscapingNames(t *testing.T) {
	s := NewMboxStore(t.TempDir())
	for _, name := range []string{"", "../x", "/etc/passwd"} {
		err := s.Append(context.Background(), name, []byte(sentMessage), nil)
		assert.Error(t, err, name)
	}
}

func TestWithStatus_ReplacesExisting(t *testing.T) {
	out := withStatus([]byte("Subject: x\nStatus: O\n\nbody\n"), "RO")
	assert.Equal(t, "Subject: x\nStatus: RO\n\nbody\n", string(out))
}

func TestEnvelopeSender(t *testing.T) {
	assert.Equal(t, "alice@x.org", envelopeSender([]byte("From: Alice <alice@x.org>\n\n")))
	assert.Equal(t, "bob@x.org", envelopeSender([]byte("Subject: s\nFrom: bob@x.org\n\n")))
	assert.Equal(t, "MAILER-DAEMON", envelopeSender([]byte("Subject: s\n\nFrom: body@x.org\n")))
}

type fakeS3 struct {
	objects  map[string][]byte
	metadata map[string]map[string]string
	putErr   error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, metadata: map[string]map[string]string{}}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	f.objects[key] = b
	f.metadata[key] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestS3Store_AppendAssignsIncreasingUIDs(t *testing.T) {
	fake := newFakeS3()
	s := NewS3Store(fake, "mail", "/archive/")
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "Sent", []byte("one"), []string{FlagSeen}))
	require.NoError(t, s.Append(ctx, "Sent", []byte("two"), nil))
	require.NoError(t, s.Append(ctx, "Drafts", []byte("other"), nil))

	assert.Equal(t, []byte("one"), fake.objects["archive/Sent/0000000001.eml"])
	assert.Equal(t, []byte("two"), fake.objects["archive/Sent/0000000002.eml"])
	assert.Equal(t, []byte("other"), fake.objects["archive/Drafts/0000000001.eml"])
	assert.Equal(t, map[string]string{"flags": `\Seen`}, fake.metadata["archive/Sent/0000000001.eml"])

	raw, err := s.Fetch(ctx, "Sent", 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), raw)
}

func TestS3Store_FetchMissing(t *testing.T) {
	s := NewS3Store(newFakeS3(), "mail", "")
	_, err := s.Fetch(context.Background(), "INBOX", 9)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestS3Store_AppendError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("access denied")
	s := NewS3Store(fake, "mail", "")
	err := s.Append(context.Background(), "Sent", []byte("x"), nil)
	assert.ErrorContains(t, err, "access denied")
}

func TestOpen_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, Config{}, nil)
	assert.Error(t, err)

	_, err = Open(ctx, Config{Type: "mbox"}, nil)
	assert.Error(t, err)

	_, err = Open(ctx, Config{Type: "s3"}, nil)
	assert.Error(t, err)

	_, err = Open(ctx, Config{Type: "maildir"}, nil)
	assert.Error(t, err)

	st, err := Open(ctx, Config{Type: "mbox", Directory: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MboxStore{}, st)

	st, err = Open(ctx, Config{Host: "imap.example.com", TLS: true}, nil)
	require.NoError(t, err)
	imapStore, ok := st.(*IMAPStore)
	require.True(t, ok)
	assert.Equal(t, "imap.example.com:993", imapStore.addr())
}

func TestAuthError(t *testing.T) {
	err := error(&AuthError{Username: "me", Message: "bad password"})
	assert.True(t, IsAuthError(err))
	assert.False(t, IsAuthError(errors.New("other")))
}
