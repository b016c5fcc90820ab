// Package scripts persists each player's script source and Memory blob on disk, one
// directory per player.
package scripts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

var ErrBadPlayerName = errors.New("bad player name")

var playerNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

func ValidPlayerName(name string) bool { return playerNameRe.MatchString(name) }

const (
	scriptFile = "main.js"
	memoryFile = "memory.json"
)

// FileStore lays players out as <root>/<player>/main.js and <root>/<player>/memory.json.
// Missing files read as empty strings.
type FileStore struct {
	root string
	mu   sync.Mutex
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) path(player, file string) (string, error) {
	if !ValidPlayerName(player) {
		return "", fmt.Errorf("%w: %q", ErrBadPlayerName, player)
	}
	return filepath.Join(s.root, player, file), nil
}

func (s *FileStore) read(player, file string) (string, error) {
	p, err := s.path(player, file)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *FileStore) write(player, file, data string) error {
	p, err := s.path(player, file)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, []byte(data), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (s *FileStore) LoadScript(player string) (string, error) { return s.read(player, scriptFile) }
func (s *FileStore) SaveScript(player, src string) error      { return s.write(player, scriptFile, src) }
func (s *FileStore) LoadMemory(player string) (string, error) { return s.read(player, memoryFile) }
func (s *FileStore) SaveMemory(player, mem string) error      { return s.write(player, memoryFile, mem) }

// MemStore keeps everything in process; used by tests and replays.
type MemStore struct {
	mu      sync.Mutex
	scripts map[string]string
	memory  map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{scripts: map[string]string{}, memory: map[string]string{}}
}

func (s *MemStore) LoadScript(player string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scripts[player], nil
}

func (s *MemStore) SaveScript(player, src string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[player] = src
	return nil
}

func (s *MemStore) LoadMemory(player string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory[player], nil
}

func (s *MemStore) SaveMemory(player, mem string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory[player] = mem
	return nil
}
