// Copyright 2025 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package discourse

import (
	"context"
	"fmt"
	"net/url"

	"github.com/abcxyz/discourse-link/pkg/membership"
	"github.com/abcxyz/discourse-link/pkg/paging"
	"github.com/abcxyz/pkg/logging"
)

// GetGroups lists one page of groups. Pages are numbered from zero.
func (c *Client) GetGroups(ctx context.Context, page int) (*membership.GroupPage, error) {
	logger := logging.FromContext(ctx)
	logger.InfoContext(ctx, "listing groups", "page", page)

	var resp groupListResponse
	if _, err := c.transport.Get(ctx, "/groups.json", &groupListOptions{Page: page}, &resp); err != nil {
		return nil, fmt.Errorf("failed to list groups page %d: %w", page, err)
	}

	groups := make([]*membership.Group, 0, len(resp.Groups))
	for _, g := range resp.Groups {
		groups = append(groups, g.toGroup())
	}
	return &membership.GroupPage{
		Groups:  groups,
		Total:   resp.TotalRowsGroup,
		HasMore: resp.LoadMoreGroups != "",
	}, nil
}

// GetGroup retrieves a group by name.
func (c *Client) GetGroup(ctx context.Context, name string) (*membership.Group, error) {
	logger := logging.FromContext(ctx)
	logger.InfoContext(ctx, "fetching group", "group", name)

	var resp groupResponse
	if _, err := c.transport.Get(ctx, "/groups/"+url.PathEscape(name)+".json", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch group %s: %w", name, err)
	}
	if resp.Group == nil {
		return nil, fmt.Errorf("failed to fetch group %s: response has no group", name)
	}
	return resp.Group.toGroup(), nil
}

// ListAllGroups walks every page of groups.
func (c *Client) ListAllGroups(ctx context.Context) ([]*membership.Group, error) {
	groups, err := paging.Paginate(ctx, paging.PageNumber(0),
		func(ctx context.Context, req paging.PageRequest[int]) (paging.Page[*membership.Group], error) {
			page, err := c.GetGroups(ctx, req.Opt())
			if err != nil {
				return nil, err
			}
			return page, nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list all groups: %w", err)
	}
	return groups, nil
}
