// Package session persists conversations as one JSON file per session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Adam-Huang/reflect/internal/model"
)

// DefaultName is given to sessions created without a name.
const DefaultName = "Default Session"

// TimeLayout formats turn timestamps.
const TimeLayout = "2006-01-02 15:04:05"

var (
	// ErrNotFound is returned for unknown or deleted sessions.
	ErrNotFound = errors.New("session not found")
	// ErrNoCriteria is returned when Get is called without an id or a name.
	ErrNoCriteria = errors.New("session id or name required")
)

// Criteria selects or describes a session.
type Criteria struct {
	SessionID   string
	SessionName string
	Extra       map[string]any
}

// LocalStore keeps sessions under a root directory as <session_id>.json.
// Saves to the same session are serialised; saves to different sessions are not.
type LocalStore struct {
	root string
	log  *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string, logger *zap.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &LocalStore{root: root, log: logger, locks: make(map[string]*sync.Mutex)}, nil
}

// Root returns the directory sessions are stored in.
func (s *LocalStore) Root() string { return s.root }

// New creates and saves an empty session.
func (s *LocalStore) New(ctx context.Context, c Criteria) (*model.Session, error) {
	name := c.SessionName
	if name == "" {
		name = DefaultName
	}
	sess := &model.Session{
		SessionID:    uuid.NewString(),
		SessionName:  name,
		Conversation: []model.Turn{},
		SessionPath:  s.root,
		CreatedAt:    time.Now(),
		Extra:        c.Extra,
	}
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.log.Info("session created", zap.String("id", sess.SessionID), zap.String("name", name))
	return sess, nil
}

// Get loads a session by id, or by name when no id is given. A name matches a
// stored session when it starts with the stored name; the newest match wins.
func (s *LocalStore) Get(ctx context.Context, c Criteria) (*model.Session, error) {
	switch {
	case c.SessionID != "":
		sess, err := s.load(c.SessionID)
		if err != nil {
			return nil, err
		}
		if sess.Deleted {
			return nil, fmt.Errorf("session %s: %w", c.SessionID, ErrNotFound)
		}
		return sess, nil
	case c.SessionName != "":
		all, err := s.loadAll(ctx)
		if err != nil {
			return nil, err
		}
		for _, sess := range all {
			if strings.HasPrefix(c.SessionName, sess.SessionName) {
				return sess, nil
			}
		}
		return nil, fmt.Errorf("session named %q: %w", c.SessionName, ErrNotFound)
	default:
		return nil, ErrNoCriteria
	}
}

// Save writes the session file under the session's lock.
func (s *LocalStore) Save(ctx context.Context, sess *model.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sess.SessionID == "" {
		return fmt.Errorf("save session: empty id")
	}
	if sess.SessionPath == "" {
		sess.SessionPath = s.root
	}

	lock := s.lockFor(sess.SessionID)
	lock.Lock()
	defer lock.Unlock()

	data, err := json.MarshalIndent(sess, "", "    ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	path := s.path(sess.SessionID)
	tmp, err := os.CreateTemp(s.root, sess.SessionID+".*.tmp")
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("save session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save session: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Append adds turns to the conversation and saves it.
func (s *LocalStore) Append(ctx context.Context, sess *model.Session, turns ...model.Turn) error {
	sess.Conversation = append(sess.Conversation, turns...)
	return s.Save(ctx, sess)
}

// Delete marks a session deleted. The file stays on disk.
func (s *LocalStore) Delete(ctx context.Context, id string) error {
	sess, err := s.load(id)
	if err != nil {
		return err
	}
	if sess.Deleted {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	sess.Deleted = true
	if err := s.Save(ctx, sess); err != nil {
		return err
	}
	s.log.Info("session deleted", zap.String("id", id))
	return nil
}

// NewTurn builds a turn stamped with now and a fresh id.
func NewTurn(role, content string, now time.Time) model.Turn {
	return model.Turn{Role: role, Content: content, Time: now.Format(TimeLayout), ID: uuid.NewString()}
}

func (s *LocalStore) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *LocalStore) path(id string) string {
	return filepath.Join(s.root, id+".json")
}

func (s *LocalStore) load(id string) (*model.Session, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	if sess.Conversation == nil {
		sess.Conversation = []model.Turn{}
	}
	return &sess, nil
}

// loadAll returns live sessions, newest first. Unreadable files are logged and skipped.
func (s *LocalStore) loadAll(ctx context.Context) ([]*model.Session, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var out []*model.Session
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		sess, err := s.load(id)
		if err != nil {
			s.log.Warn("skipping unreadable session", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		if sess.Deleted {
			continue
		}
		if sess.CreatedAt.IsZero() {
			if info, err := e.Info(); err == nil {
				sess.CreatedAt = info.ModTime()
			}
		}
		out = append(out, sess)
	}
	slices.SortStableFunc(out, func(a, b *model.Session) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}
