package auth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fivetwenty-io/amocrm/internal/constants"
	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"gopkg.in/yaml.v3"
)

// FileTokenStorage keeps a token pair in a YAML file readable only by the
// owner.
type FileTokenStorage struct {
	mu   sync.Mutex
	path string
}

// NewFileTokenStorage creates a file storage at path.
func NewFileTokenStorage(path string) *FileTokenStorage {
	return &FileTokenStorage{path: path}
}

// Path returns the file location.
func (s *FileTokenStorage) Path() string {
	return s.path
}

// Load reads the token pair. A missing file yields nil without error.
func (s *FileTokenStorage) Load(ctx context.Context) (*amocrm.StoredToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // absence is not an error
	}

	if err != nil {
		return nil, fmt.Errorf("checking token file: %w", err)
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", constants.ErrNotRegularFile, s.path)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var token amocrm.StoredToken

	err = yaml.Unmarshal(data, &token)
	if err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}

	return &token, nil
}

// Save writes the token pair, creating parent directories as needed.
func (s *FileTokenStorage) Save(ctx context.Context, token *amocrm.StoredToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.MkdirAll(filepath.Dir(s.path), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	data, err := yaml.Marshal(token)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	err = os.WriteFile(s.path, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}

	return nil
}
