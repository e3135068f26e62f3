package regime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"BTCPulse/internal/domain/models"
	"BTCPulse/pkg/util"
)

// ModelFile is the artifact name inside the model directory.
const ModelFile = "model.json"

// SaveNetwork replaces dir/model.json with the network's topology and weights.
func SaveNetwork(dir string, n *Network) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid network: %w", err)
	}
	return util.WriteJSONAtomic(filepath.Join(dir, ModelFile), n)
}

// LoadNetwork reads dir/model.json. A missing artifact is models.ErrModelNotTrained.
func LoadNetwork(dir string) (*Network, error) {
	path := filepath.Join(dir, ModelFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s not found", models.ErrModelNotTrained, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var n Network
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if err := n.Validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return &n, nil
}
