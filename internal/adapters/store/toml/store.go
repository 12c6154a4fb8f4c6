package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/numsel/internal/domain"
	"github.com/bnema/numsel/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	StorePathKey     = "store.path"
	numbersFileMode  = 0o600
	numbersDirMode   = 0o700
	numbersConfigDir = ".numsel"
	numbersFile      = "numbers.toml"
	tempFilePattern  = ".numbers-*.toml.tmp"
	lockFileSuffix   = ".lock"
	lockPollInterval = 10 * time.Millisecond
)

// Store persists the slot set in a TOML file. Every write replaces the file
// by rename, so readers take no lock. Writers in the same process share a
// per-path semaphore; writers in other processes are excluded by an advisory
// lock on a sibling lock file. Both waits end when the caller's context does.
type Store struct {
	numbersPath string
	writer      pathLock
}

// pathLock is a one-slot semaphore that can be acquired under a context.
type pathLock chan struct{}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]pathLock{}
)

var (
	_ ports.SlotStore  = (*Store)(nil)
	_ ports.ChangeFeed = (*Store)(nil)
)

func NewStore(cfg *viper.Viper) (*Store, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	cfg.SetDefault(StorePathKey, filepath.Join(homeDir, numbersConfigDir, numbersFile))

	numbersPath := cfg.GetString(StorePathKey)
	if numbersPath == "" {
		return nil, errors.New("numbers path is empty")
	}
	numbersPath, err = normalizeNumbersPath(numbersPath)
	if err != nil {
		return nil, err
	}

	return &Store{numbersPath: numbersPath, writer: lockForPath(numbersPath)}, nil
}

func (s *Store) Path() string {
	return s.numbersPath
}

func (s *Store) Initialize(ctx context.Context, total int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	slots, err := domain.NewSlotSet(total)
	if err != nil {
		return false, err
	}

	created := false
	err = s.withWriteLock(ctx, func() error {
		file, err := s.readSchema()
		if err != nil {
			return err
		}
		if len(file.Numbers) > 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		file.Numbers = toSchema(slots)
		if err := s.writeSchema(file); err != nil {
			return err
		}
		created = true
		return nil
	})

	return created, err
}

func (s *Store) Read(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}

	file, err := s.readSchema()
	if err != nil {
		return domain.Snapshot{}, err
	}
	snapshot, err := fromSchema(file.Numbers)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode numbers file: %w", err)
	}

	return snapshot, nil
}

func (s *Store) CompareAndSet(ctx context.Context, id domain.SlotID, expected, next domain.Slot) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := domain.ValidateSwap(id, next); err != nil {
		return false, err
	}

	swapped := false
	err := s.withWriteLock(ctx, func() error {
		file, err := s.readSchema()
		if err != nil {
			return err
		}
		if id < 1 || int(id) > len(file.Numbers) {
			return fmt.Errorf("slot %d: %w", id, domain.ErrSlotNotFound)
		}

		current := file.Numbers[id-1]
		if current.ID != int(expected.ID) || current.IsTaken != expected.IsTaken || current.TakenBy != expected.TakenBy {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		file.Numbers[id-1] = toSchema([]domain.Slot{next})[0]
		if err := s.writeSchema(file); err != nil {
			return err
		}
		swapped = true
		return nil
	})

	return swapped, err
}

func (s *Store) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(s.numbersPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{}, nil
		}
		return fileSchema{}, fmt.Errorf("read numbers file: %w: %w", domain.ErrStoreUnavailable, err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode numbers file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizeNumbersPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve numbers path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) pathLock {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if l, ok := pathLockMap[path]; ok {
		return l
	}

	l := make(pathLock, 1)
	pathLockMap[path] = l
	return l
}

// withWriteLock runs fn while holding both the in-process and the
// cross-process write lock. The file lock lives on a sibling file because
// the numbers file itself is replaced on write.
func (s *Store) withWriteLock(ctx context.Context, fn func() error) error {
	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.writer }()

	if err := os.MkdirAll(filepath.Dir(s.numbersPath), numbersDirMode); err != nil {
		return fmt.Errorf("create numbers directory: %w: %w", domain.ErrStoreUnavailable, err)
	}

	lockFile, err := os.OpenFile(s.numbersPath+lockFileSuffix, os.O_CREATE|os.O_RDWR, numbersFileMode)
	if err != nil {
		return fmt.Errorf("open numbers lock: %w: %w", domain.ErrStoreUnavailable, err)
	}
	defer lockFile.Close()

	if err := waitFileLock(ctx, lockFile); err != nil {
		return err
	}
	defer func() {
		_ = unlockFileHandle(lockFile)
	}()

	return fn()
}

func (s *Store) writeSchema(file fileSchema) error {
	file.applyDefaults()

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode numbers file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.numbersPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp numbers file: %w: %w", domain.ErrStoreUnavailable, err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp numbers file: %w: %w", domain.ErrStoreUnavailable, err)
	}

	if err := tempFile.Chmod(numbersFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp numbers file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("sync temp numbers file: %w: %w", domain.ErrStoreUnavailable, err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp numbers file: %w", err)
	}

	if err := os.Rename(tempName, s.numbersPath); err != nil {
		return fmt.Errorf("replace numbers file: %w: %w", domain.ErrStoreUnavailable, err)
	}

	cleanup = false
	return nil
}

// waitFileLock polls for the exclusive lock so the wait stays cancellable.
func waitFileLock(ctx context.Context, lockFile *os.File) error {
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		locked, err := tryLockFile(lockFile)
		if err != nil {
			return fmt.Errorf("lock numbers file: %w: %w", domain.ErrStoreUnavailable, err)
		}
		if locked {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
