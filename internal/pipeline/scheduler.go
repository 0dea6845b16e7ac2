package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cozy-creator/img2img/internal/backend"
)

// LMSDiscreteScheduler replaces the pipeline's default scheduler.
const LMSDiscreteScheduler = "LMSDiscreteScheduler"

const schedulerConfigPath = "scheduler/scheduler_config.json"

// deriveSchedulerConfig copies the pipeline's scheduler config and swaps in
// the LMS class. A missing config yields nil so the backend derives it.
func deriveSchedulerConfig(snapshotDir string) (map[string]any, error) {
	if snapshotDir == "" {
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Join(snapshotDir, schedulerConfigPath))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read scheduler config: %w", err)
	}

	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse scheduler config: %w", err)
	}
	if cfg == nil {
		cfg = make(map[string]any)
	}

	cfg[backend.SchedulerClassKey] = LMSDiscreteScheduler
	return cfg, nil
}
