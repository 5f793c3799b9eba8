package credstore

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Record is one line of the credential file: "username:password".
//
// The username is percent-escaped on disk for the four bytes that
// would otherwise break the line format; the password is everything
// after the first colon and is stored verbatim (or as a bcrypt hash).
type Record struct {
	Username string
	Password string

	locked bool // line had no colon
}

var (
	nameEscaper   = strings.NewReplacer("%", "%25", ":", "%3A", "\r", "%0D", "\n", "%0A")
	nameUnescaper = strings.NewReplacer("%25", "%", "%3A", ":", "%0D", "\r", "%0A", "\n")
)

// String renders the record as it is written to disk, without the
// trailing newline.
func (r Record) String() string {
	return nameEscaper.Replace(r.Username) + ":" + r.Password
}

// parseRecord decodes one line.  A line without a colon is a username
// with no usable password: it still reserves the name but can never
// log in.  Blank lines are skipped.
func parseRecord(line string) (Record, bool) {
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return Record{}, false
	}
	name, pass, found := strings.Cut(line, ":")
	return Record{
		Username: nameUnescaper.Replace(name),
		Password: pass,
		locked:   !found,
	}, true
}

// isBcryptHash reports whether a stored password field is a bcrypt
// hash rather than cleartext.
func isBcryptHash(stored string) bool {
	if len(stored) != 60 {
		return false
	}
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}

// matches compares a login attempt against the stored field.  A
// cleartext store accepts an exact match first, so a password that
// merely looks like a bcrypt hash still logs in.  A hashing store never
// accepts the hash text itself as the password.
func (r Record) matches(password string, hashing bool) bool {
	if r.locked {
		return false
	}
	exact := subtle.ConstantTimeCompare([]byte(r.Password), []byte(password)) == 1
	if !isBcryptHash(r.Password) {
		return exact
	}
	if exact && !hashing {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(r.Password), []byte(password)) == nil
}
