package locking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/mpetrenko/homeledger/internal/common"
)

const (
	// DefaultStaleTTL is how long a lock file may sit untouched before
	// another process may take it over. Guards against a crashed holder
	// leaving the lock behind forever. A live holder refreshes the file's
	// mtime well inside this window, so only crashed holders go stale.
	DefaultStaleTTL = 10 * time.Minute

	pollInterval = 100 * time.Millisecond
)

var lockName = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// FileManager implements Manager with exclusive-create lock files in a shared
// directory. Creation with O_EXCL is atomic on every platform we care about,
// which makes it a workable cross-process primitive.
type FileManager struct {
	dir      string
	staleTTL time.Duration
}

type lockInfo struct {
	PID        int    `json:"pid"`
	Token      string `json:"token"`
	AcquiredAt int64  `json:"acquiredAt"` // unix millis
}

func NewFileManager(dir string) (*FileManager, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create lock dir: %w", err)
	}
	return &FileManager{dir: dir, staleTTL: DefaultStaleTTL}, nil
}

// WithStaleTTL overrides the stale-lock takeover window.
func (m *FileManager) WithStaleTTL(ttl time.Duration) *FileManager {
	m.staleTTL = ttl
	return m
}

func (m *FileManager) WithLock(ctx context.Context, name string, opts Options, fn func(ctx context.Context) error) error {
	if !lockName.MatchString(name) {
		return fmt.Errorf("invalid lock name %q", name)
	}
	path := filepath.Join(m.dir, name+".lock")
	token := uuid.NewString()

	if err := m.acquire(ctx, path, token, opts); err != nil {
		return err
	}

	// Keep the file's mtime fresh while fn runs, so a critical section that
	// outlives staleTTL is not mistaken for a crashed holder.
	hbCtx, stopHeartbeat := context.WithCancel(context.Background())
	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		m.heartbeat(hbCtx, path)
	}()
	defer func() {
		stopHeartbeat()
		<-hbDone
		m.release(path, token)
	}()

	return fn(ctx)
}

func (m *FileManager) acquire(ctx context.Context, path, token string, opts Options) error {
	var deadline time.Time
	if opts.Timeout > 0 {
		deadline = time.Now().Add(opts.Timeout)
	}

	for {
		ok, err := m.tryAcquire(path, token)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if opts.IfAvailable {
			return common.ErrLockNotAcquired
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return common.ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// tryAcquire attempts one exclusive create. When the file already exists and
// is older than staleTTL it is moved aside through an atomic rename first:
// exactly one contender can win the rename, and a freshly created lock can
// never be deleted by a contender still holding a stale view of the file.
func (m *FileManager) tryAcquire(path, token string) (bool, error) {
	ok, err := m.create(path, token)
	if err != nil || ok {
		return ok, err
	}

	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Holder released between our create and stat, retry on the
			// next poll tick.
			return false, nil
		}
		return false, fmt.Errorf("failed to stat lock file: %w", err)
	}
	if time.Since(fi.ModTime()) < m.staleTTL {
		return false, nil
	}

	moved := fmt.Sprintf("%s.stale.%d.%d", path, os.Getpid(), time.Now().UnixNano())
	if err := os.Rename(path, moved); err != nil {
		// Lost the takeover race, or the holder released meanwhile.
		return false, nil
	}
	_ = os.Remove(moved)
	return m.create(path, token)
}

func (m *FileManager) create(path, token string) (bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	info := lockInfo{PID: os.Getpid(), Token: token, AcquiredAt: time.Now().UnixMilli()}
	if b, err := json.Marshal(info); err == nil {
		_, _ = f.Write(b)
	}
	return true, nil
}

func (m *FileManager) heartbeat(ctx context.Context, path string) {
	interval := m.staleTTL / 4
	if interval <= 0 {
		interval = pollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			_ = os.Chtimes(path, now, now)
		}
	}
}

// release removes the lock file only when its token matches: a lock that was
// taken over after going stale belongs to the new holder and stays.
func (m *FileManager) release(path, token string) {
	b, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var info lockInfo
	if json.Unmarshal(b, &info) != nil || info.Token != token {
		return
	}
	_ = os.Remove(path)
}
