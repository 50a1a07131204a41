package quota

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DownloadRecord is one usage entry in a user's append-only download log.
type DownloadRecord struct {
	Date     string `json:"date"` // RFC 3339
	NumFiles int    `json:"num_files"`
}

// Time parses the record timestamp. A zero time is returned for records
// written by hand with a malformed date; those never match a quota window.
func (r DownloadRecord) Time() time.Time {
	t, err := time.Parse(time.RFC3339, r.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// User is the persisted account record, keyed by username in the store file.
type User struct {
	PasswordHash Hash   `json:"password"`
	Email        string `json:"email"`
	DailyLimit   int    `json:"daily_limit"`
	MonthlyLimit int    `json:"monthly_limit"`
	Tier         Tier   `json:"tier,omitempty"`
	IsActive     bool   `json:"is_active"`
	CreatedAt    string `json:"created_at"`

	Downloads []DownloadRecord `json:"downloads"`
}

// Hash is a bcrypt digest stored as its string form.
type Hash string

// store owns the users.json document. It is not safe for concurrent use;
// the Ledger serializes access with its own mutex.
type store struct {
	path  string
	users map[string]*User
}

func openStore(path string) (*store, error) {
	s := &store{path: path, users: map[string]*User{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read user store: %w", err)
	}
	if err := json.Unmarshal(data, &s.users); err != nil {
		return nil, fmt.Errorf("parse user store %s: %w", path, err)
	}
	return s, nil
}

// save rewrites the whole document. Written to a temp file and renamed so a
// crash mid-write never leaves a truncated store behind.
func (s *store) save() error {
	data, err := json.MarshalIndent(s.users, "", "    ")
	if err != nil {
		return fmt.Errorf("serialize user store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write user store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace user store: %w", err)
	}
	return nil
}
