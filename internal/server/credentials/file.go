package credentials

import (
	"bufio"
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/filex"
)

// FileStore keeps credentials in a text file with one "username password"
// pair per line. The file is read once at open and rewritten in full on
// every Create.
type FileStore struct {
	path string

	mu    sync.RWMutex
	users map[string]string
	order []string
}

var _ Store = (*FileStore)(nil)

// OpenFileStore loads path. A missing file is an empty store; it is created
// on the first registration. Blank and malformed lines are skipped.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, users: make(map[string]string)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			continue
		}
		if _, dup := s.users[fields[0]]; dup {
			continue
		}
		s.users[fields[0]] = fields[1]
		s.order = append(s.order, fields[0])
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan credentials: %w", err)
	}
	return s, nil
}

func (s *FileStore) Exists(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[username]
	return ok, nil
}

func (s *FileStore) Verify(_ context.Context, username, password string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want, ok := s.users[username]
	if !ok {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1, nil
}

func (s *FileStore) Create(_ context.Context, username, password string) error {
	if err := Validate(username); err != nil {
		return err
	}
	if err := Validate(password); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; ok {
		return common.ErrAlreadyExists
	}

	var buf bytes.Buffer
	for _, name := range s.order {
		fmt.Fprintf(&buf, "%s %s\n", name, s.users[name])
	}
	fmt.Fprintf(&buf, "%s %s\n", username, password)

	if err := filex.WriteAtomic(s.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}

	s.users[username] = password
	s.order = append(s.order, username)
	return nil
}

func (s *FileStore) Close() error { return nil }
