package blob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
)

var (
	ErrInvalidKey   = errors.New("invalid blob key")
	ErrBadSignature = errors.New("signature mismatch")
	ErrExpired      = errors.New("signed url expired")
)

// typesDir holds the content type recorded for each key, mirroring the key layout.
const typesDir = ".types"

// Store keeps opaque objects under slash separated keys.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// ContentType is empty when none was recorded for key.
	ContentType(ctx context.Context, key string) (string, error)
	// Delete of a missing key is not an error.
	Delete(ctx context.Context, key string) error
	SignedURL(key, method string, ttl time.Duration) (string, error)
}

// FSStore is a Store on the local filesystem with HMAC-signed URLs.
type FSStore struct {
	root    string
	secret  []byte
	baseURL string
	now     func() time.Time
}

var _ Store = (*FSStore)(nil)

type FSOption func(s *FSStore)

func WithClock(now func() time.Time) FSOption {
	return func(s *FSStore) {
		s.now = now
	}
}

func NewFSStore(cfg Config, opts ...FSOption) (*FSStore, error) {
	if cfg.Root == "" {
		return nil, errors.New("blob root is required")
	}
	if len(cfg.Secret) == 0 {
		return nil, errors.New("blob signing secret is required")
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}

	s := &FSStore{
		root:    cfg.Root,
		secret:  []byte(cfg.Secret),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CleanKey normalises a key and rejects anything escaping the store root.
func CleanKey(key string) (string, error) {
	key = strings.ReplaceAll(key, `\`, "/")
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", ErrInvalidKey
		}
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == typesDir || strings.HasPrefix(cleaned, typesDir+"/") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

func (s *FSStore) file(key string) (string, error) {
	k, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(k)), nil
}

func (s *FSStore) typeFile(key string) (string, error) {
	k, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, typesDir, filepath.FromSlash(k)), nil
}

// Put writes through a temp file so readers never observe partial objects.
// The content type is recorded before the object becomes visible.
func (s *FSStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	p, err := s.file(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return 0, fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write blob %s: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.recordType(key, contentType); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return 0, fmt.Errorf("commit blob %s: %w", key, err)
	}
	return n, nil
}

func (s *FSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.file(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &apperr.NotFoundError{Resource: "blob", ID: key}
	}
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", key, err)
	}
	return f, nil
}

func (s *FSStore) recordType(key, contentType string) error {
	p, err := s.typeFile(key)
	if err != nil {
		return err
	}
	if contentType == "" {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clear blob type %s: %w", key, err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create blob type dir: %w", err)
	}
	if err := os.WriteFile(p, []byte(contentType), 0o644); err != nil {
		return fmt.Errorf("record blob type %s: %w", key, err)
	}
	return nil
}

func (s *FSStore) ContentType(ctx context.Context, key string) (string, error) {
	p, err := s.typeFile(key)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read blob type %s: %w", key, err)
	}
	return string(b), nil
}

func (s *FSStore) Delete(ctx context.Context, key string) error {
	p, err := s.file(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return s.recordType(key, "")
}

// SignedURL returns <base>/<key>?exp=<unix>&sig=<mac> granting method on key until exp.
func (s *FSStore) SignedURL(key, method string, ttl time.Duration) (string, error) {
	k, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	exp := s.now().Add(ttl).Unix()

	segs := strings.Split(k, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	q := url.Values{}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", s.sign(k, method, exp))
	return s.baseURL + "/" + strings.Join(segs, "/") + "?" + q.Encode(), nil
}

// Verify checks a signature produced by SignedURL.
func (s *FSStore) Verify(key, method, exp, sig string) error {
	k, err := CleanKey(key)
	if err != nil {
		return err
	}
	ts, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	if !hmac.Equal([]byte(s.sign(k, method, ts)), []byte(sig)) {
		return ErrBadSignature
	}
	if s.now().Unix() > ts {
		return ErrExpired
	}
	return nil
}

func (s *FSStore) sign(key, method string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(strings.ToUpper(method)))
	mac.Write([]byte{0})
	mac.Write([]byte(key))
	mac.Write([]byte{0})
	mac.Write([]byte(strconv.FormatInt(exp, 10)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
