package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fivetwenty-io/amocrm/internal/constants"
	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
)

// UsersClient implements amocrm.UsersClient.
type UsersClient struct {
	getter *cachedGetter
}

// NewUsersClient creates a new users client.
func NewUsersClient(getter *cachedGetter) *UsersClient {
	return &UsersClient{getter: getter}
}

// Get implements amocrm.UsersClient.Get.
func (c *UsersClient) Get(ctx context.Context, id int) (*amocrm.User, error) {
	if id <= 0 {
		return nil, amocrm.ErrRecordIDRequired
	}

	query := amocrm.NewQueryParams().WithRelations("role", "group").ToValues()

	body, err := c.getter.get(ctx, "/users/"+strconv.Itoa(id), query)
	if err != nil {
		return nil, fmt.Errorf("getting user %d: %w", id, err)
	}

	var user amocrm.User

	err = json.Unmarshal(body, &user)
	if err != nil {
		return nil, fmt.Errorf("parsing user %d: %w", id, err)
	}

	return &user, nil
}

// List implements amocrm.UsersClient.List.
func (c *UsersClient) List(ctx context.Context, params *amocrm.QueryParams) (*amocrm.ListResponse[amocrm.User], error) {
	return c.ListWithPath(ctx, "/users", params)
}

// ListWithPath implements amocrm.PaginationClient.ListWithPath.
func (c *UsersClient) ListWithPath(ctx context.Context, path string, params *amocrm.QueryParams) (*amocrm.ListResponse[amocrm.User], error) {
	body, err := c.getter.get(ctx, path, params.ToValues())
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	var list amocrm.ListResponse[amocrm.User]
	if len(body) == 0 {
		return &list, nil
	}

	err = json.Unmarshal(body, &list)
	if err != nil {
		return nil, fmt.Errorf("parsing users list: %w", err)
	}

	return &list, nil
}

// ListAll implements amocrm.UsersClient.ListAll.
func (c *UsersClient) ListAll(ctx context.Context) ([]amocrm.User, error) {
	options := &amocrm.PaginationOptions{PageSize: constants.MaxPageSize}

	return amocrm.FetchAllPages[amocrm.User](ctx, c, "/users", nil, options)
}
