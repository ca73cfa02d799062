package account

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/tendant/simple-sso/pkg/realm"
)

const accountsFile = "accounts.json"

// FileRepository implements Repository using a JSON file
type FileRepository struct {
	dataDir  string
	accounts map[uuid.UUID]*Account
	mutex    sync.RWMutex
}

type accountData struct {
	Accounts []*Account `json:"accounts"`
}

// NewFileRepository creates a file-based account repository in dataDir
func NewFileRepository(dataDir string) (*FileRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileRepository{
		dataDir:  dataDir,
		accounts: make(map[uuid.UUID]*Account),
	}
	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	return repo, nil
}

func (r *FileRepository) FindByExternalID(_ context.Context, rl realm.Realm, externalID string) (*Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, a := range r.accounts {
		if a.Realm == rl && a.ExternalID == externalID {
			return a.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *FileRepository) Insert(_ context.Context, a *Account) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, existing := range r.accounts {
		if existing.Realm == a.Realm && existing.ExternalID == a.ExternalID {
			return ErrDuplicate
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.accounts[a.ID] = a.Clone()
	return r.save()
}

func (r *FileRepository) Update(_ context.Context, a *Account) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.accounts[a.ID]; !ok {
		return ErrNotFound
	}
	r.accounts[a.ID] = a.Clone()
	return r.save()
}

func (r *FileRepository) load() error {
	filePath := filepath.Join(r.dataDir, accountsFile)

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var ad accountData
	if err := json.Unmarshal(data, &ad); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	for _, a := range ad.Accounts {
		r.accounts[a.ID] = a
	}
	return nil
}

// save writes all accounts to disk atomically. Callers hold the write lock.
func (r *FileRepository) save() error {
	accounts := make([]*Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		accounts = append(accounts, a)
	}

	jsonData, err := json.MarshalIndent(accountData{Accounts: accounts}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempFile := filepath.Join(r.dataDir, accountsFile+".tmp")
	if err := os.WriteFile(tempFile, jsonData, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, filepath.Join(r.dataDir, accountsFile)); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
