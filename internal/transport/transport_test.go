package transport

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/emersion/go-mbox"
	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSecrets map[string]string

func (m mapSecrets) Get(key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

const testMessage = "From: a@x.org\r\nTo: b@x.org\r\nSubject: hi\r\n\r\nFrom the start\r\nbye\r\n"

func TestRegistry_UnknownMethod(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Open(context.Background(), "pigeon", nil)
	assert.True(t, errors.Is(err, ErrUnknownMethod))
}

func TestRegistry_Methods(t *testing.T) {
	r := NewRegistry(nil)
	assert.Equal(t, []string{"file", "logger", "sendmail", "ses", "smtp"}, r.Methods())
}

func TestRegistry_DecodesSMTPOptions(t *testing.T) {
	r := NewRegistry(mapSecrets{"smtp-work": "s3cret"})
	tr, err := r.Open(context.Background(), "SMTP", Options{
		"address":      "mail.example.com",
		"port":         "587",
		"user_name":    "me",
		"password_key": "smtp-work",
		"tls":          false,
	})
	require.NoError(t, err)

	s, ok := tr.(*SMTP)
	require.True(t, ok)
	assert.Equal(t, "mail.example.com", s.opts.Address)
	assert.Equal(t, 587, s.opts.Port)
	assert.Equal(t, "s3cret", s.opts.Password)
	assert.True(t, s.opts.EnableStartTLSAuto)
	assert.Equal(t, 30, s.opts.OpenTimeout)
}

func TestRegistry_MissingSecret(t *testing.T) {
	r := NewRegistry(mapSecrets{})
	_, err := r.Open(context.Background(), "smtp", Options{"password_key": "nope"})
	assert.Error(t, err)
}

func TestRegistry_CustomFactory(t *testing.T) {
	r := NewRegistry(nil)
	want := NewLogger(nil, LoggerOptions{})
	r.Register("custom", func(context.Context, Options, Secrets) (Transport, error) { return want, nil })

	got, err := r.Open(context.Background(), "custom", nil)
	require.NoError(t, err)
	assert.Same(t, want, got)
}

type smtpBackend struct {
	mu      sync.Mutex
	from    string
	to      []string
	data    []byte
	mailTLS bool
	helos   []string
}

func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	_, isTLS := c.TLSConnectionState()
	b.mu.Lock()
	b.helos = append(b.helos, c.Hostname())
	b.mu.Unlock()
	return &smtpSession{b: b, tls: isTLS}, nil
}

type smtpSession struct {
	b   *smtpBackend
	tls bool
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.from = from
	s.b.mailTLS = s.tls
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.to = append(s.b.to, to)
	return nil
}

func (s *smtpSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.data = data
	return nil
}

func (s *smtpSession) Reset() {}

func (s *smtpSession) Logout() error { return nil }

func TestSMTP_Send(t *testing.T) {
	be := &smtpBackend{}
	srv := smtp.NewServer(be)
	srv.Domain = "localhost"

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(l)
	t.Cleanup(func() { srv.Close() })

	tr := NewSMTP(SMTPOptions{
		Address:     "127.0.0.1",
		Port:        l.Addr().(*net.TCPAddr).Port,
		OpenTimeout: 5,
	})
	env := Envelope{From: "a@x.org", To: []string{"b@x.org", "hidden@x.org"}}
	require.NoError(t, tr.Send(context.Background(), env, []byte(testMessage)))

	be.mu.Lock()
	defer be.mu.Unlock()
	assert.Equal(t, "a@x.org", be.from)
	assert.Equal(t, []string{"b@x.org", "hidden@x.org"}, be.to)
	assert.Equal(t, testMessage, string(be.data))
}

// selfSignedTLS returns a server config with a throwaway certificate.
func selfSignedTLS(t *testing.T) *tls.Config {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return &tls.Config{Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}}}
}

func TestSMTP_UpgradesWithStartTLS(t *testing.T) {
	be := &smtpBackend{}
	srv := smtp.NewServer(be)
	srv.Domain = "localhost"
	srv.TLSConfig = selfSignedTLS(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(l)
	t.Cleanup(func() { srv.Close() })

	tr := NewSMTP(SMTPOptions{
		Address:            "127.0.0.1",
		Port:               l.Addr().(*net.TCPAddr).Port,
		Domain:             "client.example.org",
		EnableStartTLSAuto: true,
		InsecureSkipVerify: true,
		OpenTimeout:        5,
	})
	env := Envelope{From: "a@x.org", To: []string{"b@x.org"}}
	require.NoError(t, tr.Send(context.Background(), env, []byte(testMessage)))

	be.mu.Lock()
	defer be.mu.Unlock()
	assert.True(t, be.mailTLS)
	assert.Equal(t, testMessage, string(be.data))
	require.NotEmpty(t, be.helos)
	assert.Equal(t, "client.example.org", be.helos[len(be.helos)-1])
}

func TestSMTP_StartTLSDisabled(t *testing.T) {
	be := &smtpBackend{}
	srv := smtp.NewServer(be)
	srv.Domain = "localhost"
	srv.TLSConfig = selfSignedTLS(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(l)
	t.Cleanup(func() { srv.Close() })

	tr := NewSMTP(SMTPOptions{Address: "127.0.0.1", Port: l.Addr().(*net.TCPAddr).Port, OpenTimeout: 5})
	require.NoError(t, tr.Send(context.Background(), Envelope{From: "a@x.org", To: []string{"b@x.org"}}, []byte(testMessage)))

	be.mu.Lock()
	defer be.mu.Unlock()
	assert.False(t, be.mailTLS)
}

func TestSMTP_ConnectFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	tr := NewSMTP(SMTPOptions{Address: "127.0.0.1", Port: port, OpenTimeout: 1})
	err = tr.Send(context.Background(), Envelope{From: "a@x.org", To: []string{"b@x.org"}}, []byte(testMessage))
	assert.Error(t, err)
}

func TestFile_AppendsMbox(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "sent.mbox")
	f := NewFile(FileOptions{Location: path})
	f.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	env := Envelope{From: "a@x.org", To: []string{"b@x.org"}}
	require.NoError(t, f.Send(context.Background(), env, []byte(testMessage)))
	require.NoError(t, f.Send(context.Background(), env, []byte(testMessage)))

	in, err := os.Open(path)
	require.NoError(t, err)
	defer in.Close()

	r := mbox.NewReader(in)
	var msgs []string
	for {
		m, err := r.NextMessage()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, err := io.ReadAll(m)
		require.NoError(t, err)
		msgs = append(msgs, string(b))
	}
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "Subject: hi\r\n")
	assert.Contains(t, msgs[0], "\r\nFrom the start\r\nbye\r\n")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "From a@x.org Tue Jan  2 03:04:05 2024\nSubject: hi\n"))
	assert.Contains(t, string(raw), "\n>From the start\nbye\n")
}

func TestFile_RequiresLocation(t *testing.T) {
	_, err := NewRegistry(nil).Open(context.Background(), "file", nil)
	assert.Error(t, err)
}

type mockSESClient struct {
	err       error
	lastInput *sesv2.SendEmailInput
}

func (m *mockSESClient) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.lastInput = params
	if m.err != nil {
		return nil, m.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestSES_SendRaw(t *testing.T) {
	mock := &mockSESClient{}
	s := NewSESWithClient(mock, "tracking")

	env := Envelope{From: "a@x.org", To: []string{"b@x.org", "hidden@x.org"}}
	require.NoError(t, s.Send(context.Background(), env, []byte(testMessage)))

	in := mock.lastInput
	require.NotNil(t, in)
	assert.Equal(t, "a@x.org", aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"b@x.org", "hidden@x.org"}, in.Destination.ToAddresses)
	assert.Equal(t, []byte(testMessage), in.Content.Raw.Data)
	assert.Equal(t, "tracking", aws.ToString(in.ConfigurationSetName))
}

func TestSES_Error(t *testing.T) {
	s := NewSESWithClient(&mockSESClient{err: errors.New("throttled")}, "")
	err := s.Send(context.Background(), Envelope{From: "a@x.org", To: []string{"b@x.org"}}, []byte(testMessage))
	assert.ErrorContains(t, err, "throttled")
}

func TestLogger_Send(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.New(slog.NewTextHandler(&buf, nil)), LoggerOptions{Level: "warn"})

	require.NoError(t, l.Send(context.Background(), Envelope{From: "a@x.org", To: []string{"b@x.org"}}, []byte(testMessage)))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "from=a@x.org")
}
