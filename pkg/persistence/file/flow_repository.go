package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mdrealofficial/node-bot-sub005/pkg/models"
	"github.com/mdrealofficial/node-bot-sub005/pkg/persistence"
)

// FlowRepository stores one JSON file per flow definition under root/flows.
type FlowRepository struct {
	root string
}

func NewFlowRepository(root string) *FlowRepository {
	return &FlowRepository{root: root}
}

func (r *FlowRepository) dir() string {
	return filepath.Join(r.root, "flows")
}

func (r *FlowRepository) FlowByID(_ context.Context, id string) (*models.FlowDefinition, error) {
	if err := validateID(id); err != nil {
		return nil, fmt.Errorf("invalid flow ID: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(r.dir(), id+".json")) // #nosec G304 -- id is validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("flow %s: %w", id, persistence.ErrFlowNotFound)
		}

		return nil, fmt.Errorf("failed to read flow %s: %w", id, err)
	}

	var flow models.FlowDefinition

	err = json.Unmarshal(data, &flow)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow %s: %w", id, err)
	}

	return &flow, nil
}

func (r *FlowRepository) SaveFlow(_ context.Context, flow *models.FlowDefinition) error {
	if err := validateID(flow.ID); err != nil {
		return fmt.Errorf("invalid flow ID: %w", err)
	}

	err := os.MkdirAll(r.dir(), 0750)
	if err != nil {
		return fmt.Errorf("failed to create flows directory: %w", err)
	}

	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = time.Now().UTC()
	}

	flow.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("failed to marshal flow %s: %w", flow.ID, err)
	}

	err = os.WriteFile(filepath.Join(r.dir(), flow.ID+".json"), data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write flow %s: %w", flow.ID, err)
	}

	return nil
}

func (r *FlowRepository) Flows(ctx context.Context) ([]*models.FlowDefinition, error) {
	entries, err := os.ReadDir(r.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	flows := make([]*models.FlowDefinition, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		flow, err := r.FlowByID(ctx, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, err
		}

		flows = append(flows, flow)
	}

	return flows, nil
}
