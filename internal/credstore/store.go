// Package credstore is the durable username → password mapping used to
// authenticate and register chat users.
//
// The backing file is the source of truth and is re-read on every call,
// so edits made by an operator while the server runs are honoured.  All
// access goes through one RWMutex: lookups share the read side, while
// Register holds the write side across its existence check and append,
// which keeps usernames unique under concurrent signups.
package credstore

import (
	"bytes"
	"os"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"linechat/internal/errors"
)

// Store is a flat-file credential store.  It is safe for concurrent use
// within one process; separate processes sharing a file are not
// coordinated.
type Store struct {
	path       string
	bcryptCost int // 0 = store cleartext

	mu sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithBcrypt makes Register store bcrypt hashes at the given cost
// instead of cleartext.  Authenticate accepts both forms regardless.
func WithBcrypt(cost int) Option {
	return func(s *Store) {
		if cost < bcrypt.MinCost {
			cost = bcrypt.DefaultCost
		}
		s.bcryptCost = cost
	}
}

// Open returns a Store backed by path.  A missing file is an empty
// store and is created by the first Register; any other problem reading
// it is reported now rather than on the first login.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{path: path}
	for _, o := range opts {
		o(s)
	}
	if _, _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Authenticate reports whether a record with exactly this username and
// password exists.  On a read failure it returns false and the error;
// callers must deny access.
func (s *Store) Authenticate(username, password string) (bool, error) {
	if username == "" {
		return false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records, _, err := s.load()
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if r.Username == username && r.matches(password, s.bcryptCost > 0) {
			return true, nil
		}
	}
	return false, nil
}

// Register appends a new record unless the username is already taken.
// It returns (false, nil) for a duplicate, (true, nil) on success, and
// (false, err) when the name is invalid or the file cannot be updated.
func (s *Store) Register(username, password string) (bool, error) {
	if username == "" {
		return false, errors.ErrInvalidUsername
	}

	stored := password
	if s.bcryptCost > 0 {
		h, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
		if err != nil {
			return false, errors.WrapStore("hash", s.path, err)
		}
		stored = string(h)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, needsNewline, err := s.load()
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if r.Username == username {
			return false, nil
		}
	}

	line := Record{Username: username, Password: stored}.String() + "\n"
	if needsNewline {
		line = "\n" + line
	}
	if err := s.append(line); err != nil {
		return false, err
	}
	return true, nil
}

// Usernames returns every stored username in file order.
func (s *Store) Usernames() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, _, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Username)
	}
	return out, nil
}

// ── file access (callers hold mu) ────────────────────────────────────

// load reads every record.  needsNewline is true when the file is
// non-empty and does not end in "\n", so the next append must start a
// fresh line.
func (s *Store) load() (records []Record, needsNewline bool, err error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, errors.WrapStore("read", s.path, err)
	}

	for _, line := range bytes.Split(data, []byte("\n")) {
		if r, ok := parseRecord(string(line)); ok {
			records = append(records, r)
		}
	}
	needsNewline = len(data) > 0 && data[len(data)-1] != '\n'
	return records, needsNewline, nil
}

func (s *Store) append(line string) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.WrapStore("append", s.path, err)
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return errors.WrapStore("append", s.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.WrapStore("sync", s.path, err)
	}
	if err := f.Close(); err != nil {
		return errors.WrapStore("append", s.path, err)
	}
	return nil
}
