package roles

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Directory answers role checks for enforcement and override operations.
// Accounts absent from the directory are regular users.
type Directory interface {
	IsModerator(accountID string) bool
	IsAdmin(accountID string) bool
}

// StaticDirectory is a Directory backed by a JSON file of account IDs:
//
//	{"admins": ["acct1"], "moderators": ["acct2", "acct3"]}
//
// Admins hold all moderator privileges. With an empty path the directory is
// disabled and every check returns false.
type StaticDirectory struct {
	mu     sync.RWMutex
	path   string
	mods   map[string]bool
	admins map[string]bool
}

func NewStaticDirectory(path string) (*StaticDirectory, error) {
	d := &StaticDirectory{
		path:   path,
		mods:   make(map[string]bool),
		admins: make(map[string]bool),
	}
	if path == "" {
		slog.Info("no roles file configured, moderator directory disabled")
		return d, nil
	}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload re-reads the roles file, replacing the directory wholesale.
func (d *StaticDirectory) Reload() error {
	if d.path == "" {
		return nil
	}

	raw, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("failed to read roles file: %w", err)
	}

	var doc struct {
		Admins     []string `json:"admins"`
		Moderators []string `json:"moderators"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse roles file %s: %w", d.path, err)
	}

	admins := make(map[string]bool, len(doc.Admins))
	mods := make(map[string]bool, len(doc.Moderators))
	for _, id := range doc.Admins {
		admins[id] = true
	}
	for _, id := range doc.Moderators {
		mods[id] = true
	}

	d.mu.Lock()
	d.admins = admins
	d.mods = mods
	d.mu.Unlock()

	slog.Info("roles loaded", "path", d.path, "admins", len(admins), "moderators", len(mods))
	return nil
}

// Grant adds a role at runtime, for bootstrap and tests.
func (d *StaticDirectory) Grant(accountID string, admin bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if admin {
		d.admins[accountID] = true
	} else {
		d.mods[accountID] = true
	}
}

func (d *StaticDirectory) IsModerator(accountID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mods[accountID] || d.admins[accountID]
}

func (d *StaticDirectory) IsAdmin(accountID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.admins[accountID]
}
