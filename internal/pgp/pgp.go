// Package pgp signs and encrypts assembled messages as PGP/MIME (RFC 3156).
package pgp

import (
	"bytes"
	"context"
	"crypto"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/nhle/draftmail/internal/compose"
	"github.com/nhle/draftmail/internal/draft"
)

// ErrNoSigningKey is returned when signing is requested without a usable
// secret key.
var ErrNoSigningKey = errors.New("no secret key available for signing")

// MissingKeyError reports a recipient without a public key.
type MissingKeyError struct {
	Address string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("no public key for %s", e.Address)
}

// EightBitPartError reports an embedded part that cannot be signed because
// its body is not 7-bit clean and its type forbids re-encoding.
type EightBitPartError struct {
	ContentType string
}

func (e *EightBitPartError) Error() string {
	return fmt.Sprintf("cannot sign %s part with 8-bit content", e.ContentType)
}

// Options configures a Crypto.
type Options struct {
	SecretKeyring string
	PublicKeyring string

	// Passphrase unlocks an encrypted secret key. It is called at most
	// once per Apply and only when needed.
	Passphrase func() ([]byte, error)

	// EncryptToSelf adds the sender to the recipients of encrypted mail.
	EncryptToSelf bool
}

// Crypto signs and encrypts messages with keys from armored keyrings.
type Crypto struct {
	secret        openpgp.EntityList
	public        openpgp.EntityList
	passphrase    func() ([]byte, error)
	encryptToSelf bool
	config        *packet.Config
}

// Open reads the configured keyrings. Either path may be empty.
func Open(opts Options) (*Crypto, error) {
	secret, err := readKeyring(opts.SecretKeyring)
	if err != nil {
		return nil, fmt.Errorf("read secret keyring: %w", err)
	}
	public, err := readKeyring(opts.PublicKeyring)
	if err != nil {
		return nil, fmt.Errorf("read public keyring: %w", err)
	}
	return New(secret, public, opts), nil
}

// New returns a Crypto using already loaded keys.
func New(secret, public openpgp.EntityList, opts Options) *Crypto {
	return &Crypto{
		secret:        secret,
		public:        public,
		passphrase:    opts.Passphrase,
		encryptToSelf: opts.EncryptToSelf,
		config:        &packet.Config{DefaultHash: crypto.SHA256},
	}
}

func readKeyring(path string) (openpgp.EntityList, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return openpgp.ReadArmoredKeyRing(f)
}

// Apply replaces the message content with a multipart/signed or
// multipart/encrypted entity as the directive requests. Sign and encrypt
// together produce an encrypted message with the signature inside.
func (c *Crypto) Apply(ctx context.Context, msg *compose.Message, d draft.Directive) error {
	if !d.Active() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var signer *openpgp.Entity
	if d.Sign {
		var err error
		if signer, err = c.signer(); err != nil {
			return err
		}
	}

	content := msg.Content()
	if d.Encrypt {
		to, err := c.recipients(msg)
		if err != nil {
			return err
		}
		encrypted, err := c.encrypt(content, to, signer)
		if err != nil {
			return err
		}
		msg.SetContent(encrypted)
		return nil
	}

	signed, err := c.sign(content, signer)
	if err != nil {
		return err
	}
	msg.SetContent(signed)
	return nil
}

func (c *Crypto) sign(content *compose.Entity, signer *openpgp.Entity) (*compose.Entity, error) {
	if err := sevenBit(content); err != nil {
		return nil, err
	}
	data, err := content.Bytes()
	if err != nil {
		return nil, err
	}

	var sig bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&sig, signer, bytes.NewReader(data), c.config); err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	return compose.NewMultipart("signed", map[string]string{
		"micalg":   micalg(c.config.Hash()),
		"protocol": "application/pgp-signature",
	}, content, &compose.Entity{
		ContentType:       "application/pgp-signature",
		Params:            map[string]string{"name": "signature.asc"},
		Description:       "OpenPGP digital signature",
		Disposition:       "attachment",
		DispositionParams: map[string]string{"filename": "signature.asc"},
		Encoding:          compose.Encoding7Bit,
		Body:              sig.Bytes(),
	}), nil
}

func (c *Crypto) encrypt(content *compose.Entity, to []*openpgp.Entity, signer *openpgp.Entity) (*compose.Entity, error) {
	data, err := content.Bytes()
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	aw, err := armor.Encode(&out, "PGP MESSAGE", nil)
	if err != nil {
		return nil, err
	}
	pw, err := openpgp.Encrypt(aw, to, signer, nil, c.config)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	if _, err := pw.Write(data); err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	if err := pw.Close(); err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	if err := aw.Close(); err != nil {
		return nil, err
	}
	out.WriteString("\n")

	return compose.NewMultipart("encrypted", map[string]string{
		"protocol": "application/pgp-encrypted",
	}, &compose.Entity{
		ContentType: "application/pgp-encrypted",
		Description: "PGP/MIME version identification",
		Encoding:    compose.Encoding7Bit,
		Body:        []byte("Version: 1\n"),
	}, &compose.Entity{
		ContentType:       "application/octet-stream",
		Params:            map[string]string{"name": "encrypted.asc"},
		Description:       "OpenPGP encrypted message",
		Disposition:       "inline",
		DispositionParams: map[string]string{"filename": "encrypted.asc"},
		Encoding:          compose.Encoding7Bit,
		Body:              out.Bytes(),
	}), nil
}

// signer returns the first secret key, unlocking it if needed.
func (c *Crypto) signer() (*openpgp.Entity, error) {
	for _, e := range c.secret {
		if e.PrivateKey == nil {
			continue
		}
		if e.PrivateKey.Encrypted {
			if c.passphrase == nil {
				return nil, fmt.Errorf("secret key is locked and no passphrase is configured")
			}
			pass, err := c.passphrase()
			if err != nil {
				return nil, fmt.Errorf("read passphrase: %w", err)
			}
			if err := e.DecryptPrivateKeys(pass); err != nil {
				return nil, fmt.Errorf("unlock secret key: %w", err)
			}
		}
		return e, nil
	}
	return nil, ErrNoSigningKey
}

func (c *Crypto) recipients(msg *compose.Message) ([]*openpgp.Entity, error) {
	addrs, err := msg.Recipients()
	if err != nil {
		return nil, err
	}
	if c.encryptToSelf {
		if from, err := msg.Sender(); err == nil {
			addrs = append(addrs, from)
		}
	}

	var to []*openpgp.Entity
	seen := make(map[*openpgp.Entity]bool)
	for _, a := range addrs {
		e := c.lookup(a)
		if e == nil {
			return nil, &MissingKeyError{Address: a}
		}
		if !seen[e] {
			seen[e] = true
			to = append(to, e)
		}
	}
	return to, nil
}

func (c *Crypto) lookup(addr string) *openpgp.Entity {
	for _, list := range []openpgp.EntityList{c.public, c.secret} {
		for _, e := range list {
			for _, id := range e.Identities {
				if id.UserId != nil && strings.EqualFold(id.UserId.Email, addr) {
					return e
				}
			}
		}
	}
	return nil
}

// sevenBit makes every leaf 7-bit clean so the signed bytes survive
// transport unchanged. Text leaves switch to quoted-printable. Other 8bit
// leaves, such as message/rfc822, may not be re-encoded and are refused
// when they carry 8-bit bytes.
func sevenBit(e *compose.Entity) error {
	if e.IsMultipart() {
		for _, p := range e.Parts {
			if err := sevenBit(p); err != nil {
				return err
			}
		}
		return nil
	}
	enc := strings.ToLower(e.Encoding)
	if enc != "" && enc != compose.Encoding8Bit {
		return nil
	}
	if e.IsText() {
		e.Encoding = compose.EncodingQuotedPrintable
		return nil
	}
	for _, b := range e.Body {
		if b >= 0x80 {
			return &EightBitPartError{ContentType: e.ContentType}
		}
	}
	e.Encoding = compose.Encoding7Bit
	return nil
}

func micalg(h crypto.Hash) string {
	switch h {
	case crypto.SHA1:
		return "pgp-sha1"
	case crypto.SHA384:
		return "pgp-sha384"
	case crypto.SHA512:
		return "pgp-sha512"
	case crypto.SHA224:
		return "pgp-sha224"
	default:
		return "pgp-sha256"
	}
}
