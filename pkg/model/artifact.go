package model

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/blake2b"
	errs "kpredict/pkg/errors"
	"kpredict/pkg/features"
)

// ArtifactVersion is bumped when the artifact layout changes
const ArtifactVersion = 1

// ErrModelNotFound is returned when a player has no artifact
var ErrModelNotFound = errs.New(errs.ErrorTypeNotFound, "no model for player")

// ErrChecksumMismatch is returned for an artifact whose content was altered
var ErrChecksumMismatch = errors.New("model artifact checksum mismatch")

// Holdout summarizes the model on the rows held out of training
type Holdout struct {
	Rows int      `json:"rows"`
	MAE  *float64 `json:"mae,omitempty"`
	R2   *float64 `json:"r2,omitempty"`
}

// Artifact is the serialized per-player model
type Artifact struct {
	Version   int               `json:"version"`
	Player    string            `json:"player"`
	Features  []string          `json:"features"`
	Model     Linear            `json:"model"`
	Lambda    float64           `json:"lambda"`
	Encoding  features.Encoding `json:"encoding"`
	Window    int               `json:"rolling_window"`
	TrainRows int               `json:"train_rows"`
	Holdout   Holdout           `json:"holdout"`
	TrainedAt time.Time         `json:"trained_at"`
	Checksum  string            `json:"checksum"`
}

// Predict runs the model on one feature vector in features.Names order
func (a *Artifact) Predict(x []float64) (float64, error) {
	return a.Model.Predict(x)
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// checksum hashes the artifact with an empty Checksum field
func (a *Artifact) checksum() (string, error) {
	unsigned := *a
	unsigned.Checksum = ""
	data, err := json.Marshal(&unsigned)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Slug turns a player name into a file-name-safe identifier
func Slug(player string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(player)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ArtifactPath is where a player's model lives under dir
func ArtifactPath(dir, player string) string {
	return filepath.Join(dir, Slug(player)+".json")
}

// Save signs and writes the artifact atomically under dir
func Save(dir string, a *Artifact) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}

	sum, err := a.checksum()
	if err != nil {
		return "", fmt.Errorf("failed to hash artifact: %w", err)
	}
	a.Checksum = sum

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return "", fmt.Errorf("failed to encode artifact: %w", err)
	}

	path := ArtifactPath(dir, a.Player)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to replace artifact: %w", err)
	}
	return path, nil
}

// Load reads and verifies a player's artifact
func Load(dir, player string) (*Artifact, error) {
	path := ArtifactPath(dir, player)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, player)
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", path, err)
	}

	sum, err := a.checksum()
	if err != nil {
		return nil, fmt.Errorf("failed to hash artifact: %w", err)
	}
	if sum != a.Checksum {
		return nil, fmt.Errorf("%w: %s", ErrChecksumMismatch, path)
	}
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("unsupported artifact version %d in %s", a.Version, path)
	}
	if len(a.Model.Coefficients) != len(features.Names) {
		return nil, fmt.Errorf("artifact %s has %d coefficients, want %d", path, len(a.Model.Coefficients), len(features.Names))
	}
	return &a, nil
}
