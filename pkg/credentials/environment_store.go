package credentials

import (
	"os"
	"time"
)

// PasswordEnv names the variable read by EnvironmentStore
const PasswordEnv = "KPREDICT_DB_PASSWORD"

// EnvironmentStore reads the password from the environment. It is read-only.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(*Credential) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment password under any name
func (e *EnvironmentStore) Retrieve(name string) (*Credential, error) {
	password := os.Getenv(PasswordEnv)
	if password == "" {
		return nil, ErrCredentialsNotFound
	}
	if name == "" {
		name = "default"
	}
	return &Credential{Name: name, Password: password, LastModified: time.Now()}, nil
}

func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(string) bool {
	return os.Getenv(PasswordEnv) != ""
}
