// Package history persists asked questions and the feedback given on them.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/querylens/internal/utils"
)

// ErrNotFound is returned by Vote when no turn matches the id.
var ErrNotFound = errors.New("history: turn not found")

// Log is the on-disk chat history. It is safe for concurrent use.
type Log struct {
	Turns     []Turn    `json:"turns"`
	UpdatedAt time.Time `json:"updated_at"`

	path string
	mu   sync.Mutex
}

// Open loads the history at path. A missing file yields an empty log.
func Open(path string) (*Log, error) {
	l := &Log{path: path}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return l, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}
	if err := json.Unmarshal(b, l); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	return l, nil
}

// Path returns the file backing the log.
func (l *Log) Path() string { return l.path }

func (l *Log) save() error {
	if l.path == "" {
		return errors.New("history path not set")
	}
	l.UpdatedAt = time.Now()
	data, err := utils.PrettyJSON(l)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(l.path, data)
}

// Append records t, assigning an id and timestamp when unset, and saves.
func (l *Log) Append(t Turn) (Turn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.AskedAt.IsZero() {
		t.AskedAt = time.Now()
	}
	t.Question = strings.TrimSpace(t.Question)
	l.Turns = append(l.Turns, t)
	if err := l.save(); err != nil {
		return t, err
	}
	return t, nil
}

// Vote adds an up or down vote to the turn whose id starts with id. The
// prefix must be unambiguous.
func (l *Log) Vote(id string, up bool) (Turn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id = strings.TrimSpace(id)
	if id == "" {
		return Turn{}, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	match := -1
	for i := range l.Turns {
		if strings.HasPrefix(l.Turns[i].ID, id) {
			if match >= 0 {
				return Turn{}, fmt.Errorf("id prefix %q is ambiguous", id)
			}
			match = i
		}
	}
	if match < 0 {
		return Turn{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if up {
		l.Turns[match].Upvotes++
	} else {
		l.Turns[match].Downvotes++
	}
	if err := l.save(); err != nil {
		return Turn{}, err
	}
	return l.Turns[match], nil
}

// Recent returns up to n turns, newest first. n <= 0 returns all.
func (l *Log) Recent(n int) []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Turn, len(l.Turns))
	for i, t := range l.Turns {
		out[len(l.Turns)-1-i] = t
	}
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Liked returns up to n turns with SQL and a positive score, best first.
// They serve as worked examples for later generations.
func (l *Log) Liked(n int) []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Turn
	for _, t := range l.Turns {
		if t.SQL != "" && t.Error == "" && t.Score() > 0 {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score() != out[j].Score() {
			return out[i].Score() > out[j].Score()
		}
		return out[i].AskedAt.After(out[j].AskedAt)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
