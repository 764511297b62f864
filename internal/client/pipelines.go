package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
)

// ErrStatusNotFound is returned when a pipeline has no status with the
// requested ID.
var ErrStatusNotFound = errors.New("status not found")

// PipelinesClient implements amocrm.PipelinesClient.
type PipelinesClient struct {
	getter *cachedGetter
}

// NewPipelinesClient creates a new pipelines client.
func NewPipelinesClient(getter *cachedGetter) *PipelinesClient {
	return &PipelinesClient{getter: getter}
}

// List implements amocrm.PipelinesClient.List. amoCRM returns every
// pipeline with its statuses in one response.
func (c *PipelinesClient) List(ctx context.Context) ([]amocrm.Pipeline, error) {
	body, err := c.getter.get(ctx, "/leads/pipelines", nil)
	if err != nil {
		return nil, fmt.Errorf("listing pipelines: %w", err)
	}

	if len(body) == 0 {
		return nil, nil
	}

	var list amocrm.ListResponse[amocrm.Pipeline]

	err = json.Unmarshal(body, &list)
	if err != nil {
		return nil, fmt.Errorf("parsing pipelines list: %w", err)
	}

	return list.Items(), nil
}

// Get implements amocrm.PipelinesClient.Get.
func (c *PipelinesClient) Get(ctx context.Context, id int) (*amocrm.Pipeline, error) {
	if id <= 0 {
		return nil, amocrm.ErrRecordIDRequired
	}

	body, err := c.getter.get(ctx, "/leads/pipelines/"+strconv.Itoa(id), nil)
	if err != nil {
		return nil, fmt.Errorf("getting pipeline %d: %w", id, err)
	}

	var pipeline amocrm.Pipeline

	err = json.Unmarshal(body, &pipeline)
	if err != nil {
		return nil, fmt.Errorf("parsing pipeline %d: %w", id, err)
	}

	return &pipeline, nil
}

// ListStatuses implements amocrm.PipelinesClient.ListStatuses.
func (c *PipelinesClient) ListStatuses(ctx context.Context, pipelineID int) ([]amocrm.Status, error) {
	if pipelineID <= 0 {
		return nil, amocrm.ErrRecordIDRequired
	}

	body, err := c.getter.get(ctx, "/leads/pipelines/"+strconv.Itoa(pipelineID)+"/statuses", nil)
	if err != nil {
		return nil, fmt.Errorf("listing statuses of pipeline %d: %w", pipelineID, err)
	}

	if len(body) == 0 {
		return nil, nil
	}

	var list amocrm.ListResponse[amocrm.Status]

	err = json.Unmarshal(body, &list)
	if err != nil {
		return nil, fmt.Errorf("parsing statuses list: %w", err)
	}

	return list.Items(), nil
}

// GetStatus implements amocrm.PipelinesClient.GetStatus.
func (c *PipelinesClient) GetStatus(ctx context.Context, pipelineID, statusID int) (*amocrm.Status, error) {
	statuses, err := c.ListStatuses(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	for i := range statuses {
		if statuses[i].ID == statusID {
			return &statuses[i], nil
		}
	}

	return nil, fmt.Errorf("%w: pipeline %d, status %d", ErrStatusNotFound, pipelineID, statusID)
}
