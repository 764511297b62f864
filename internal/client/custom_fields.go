package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fivetwenty-io/amocrm/internal/constants"
	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
)

// CustomFieldsClient implements amocrm.CustomFieldsClient.
type CustomFieldsClient struct {
	getter *cachedGetter
}

// NewCustomFieldsClient creates a new custom fields client.
func NewCustomFieldsClient(getter *cachedGetter) *CustomFieldsClient {
	return &CustomFieldsClient{getter: getter}
}

func customFieldsPath(entity amocrm.EntityType) (string, error) {
	switch entity {
	case amocrm.EntityLeads, amocrm.EntityContacts, amocrm.EntityCompanies, amocrm.EntityCustomers:
		return "/" + string(entity) + "/custom_fields", nil
	default:
		return "", fmt.Errorf("%w: %q", constants.ErrInvalidEntityType, entity)
	}
}

// Get implements amocrm.CustomFieldsClient.Get.
func (c *CustomFieldsClient) Get(ctx context.Context, entity amocrm.EntityType, id int) (*amocrm.CustomFieldDefinition, error) {
	if id <= 0 {
		return nil, amocrm.ErrRecordIDRequired
	}

	path, err := customFieldsPath(entity)
	if err != nil {
		return nil, err
	}

	body, err := c.getter.get(ctx, path+"/"+strconv.Itoa(id), nil)
	if err != nil {
		return nil, fmt.Errorf("getting %s custom field %d: %w", entity, id, err)
	}

	var definition amocrm.CustomFieldDefinition

	err = json.Unmarshal(body, &definition)
	if err != nil {
		return nil, fmt.Errorf("parsing %s custom field %d: %w", entity, id, err)
	}

	return &definition, nil
}

// List implements amocrm.CustomFieldsClient.List.
func (c *CustomFieldsClient) List(ctx context.Context, entity amocrm.EntityType, params *amocrm.QueryParams) (*amocrm.ListResponse[amocrm.CustomFieldDefinition], error) {
	path, err := customFieldsPath(entity)
	if err != nil {
		return nil, err
	}

	return c.ListWithPath(ctx, path, params)
}

// ListWithPath implements amocrm.PaginationClient.ListWithPath.
func (c *CustomFieldsClient) ListWithPath(ctx context.Context, path string, params *amocrm.QueryParams) (*amocrm.ListResponse[amocrm.CustomFieldDefinition], error) {
	body, err := c.getter.get(ctx, path, params.ToValues())
	if err != nil {
		return nil, fmt.Errorf("listing custom fields: %w", err)
	}

	var list amocrm.ListResponse[amocrm.CustomFieldDefinition]
	if len(body) == 0 {
		return &list, nil
	}

	err = json.Unmarshal(body, &list)
	if err != nil {
		return nil, fmt.Errorf("parsing custom fields list: %w", err)
	}

	return &list, nil
}

// ListAll implements amocrm.CustomFieldsClient.ListAll.
func (c *CustomFieldsClient) ListAll(ctx context.Context, entity amocrm.EntityType) ([]amocrm.CustomFieldDefinition, error) {
	path, err := customFieldsPath(entity)
	if err != nil {
		return nil, err
	}

	options := &amocrm.PaginationOptions{PageSize: constants.MaxPageSize}

	return amocrm.FetchAllPages[amocrm.CustomFieldDefinition](ctx, c, path, nil, options)
}
