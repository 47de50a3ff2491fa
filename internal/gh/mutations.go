package gh

import (
	"context"
	"fmt"

	"github.com/machinebox/graphql"
)

// UpdateItemField sets a project item's SINGLE_SELECT field to optionID.
func (c *Client) UpdateItemField(ctx context.Context, projectID, itemID, fieldID, optionID string) error {
	req := graphql.NewRequest(`
		mutation($projectId: ID!, $itemId: ID!, $fieldId: ID!, $value: ProjectV2FieldValue!) {
			updateProjectV2ItemFieldValue(
				input: {
					projectId: $projectId
					itemId: $itemId
					fieldId: $fieldId
					value: $value
				}
			) {
				projectV2Item {
					id
				}
			}
		}
	`)

	req.Var("projectId", projectID)
	req.Var("itemId", itemID)
	req.Var("fieldId", fieldID)
	req.Var("value", map[string]interface{}{
		"singleSelectOptionId": optionID,
	})

	var resp struct {
		UpdateProjectV2ItemFieldValue struct {
			ProjectV2Item struct {
				ID string `json:"id"`
			} `json:"projectV2Item"`
		} `json:"updateProjectV2ItemFieldValue"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return fmt.Errorf("failed to update item field: %w", err)
	}
	return nil
}

// ClearItemField unsets a project item's field value, which puts the item
// in the "No Status" column.
func (c *Client) ClearItemField(ctx context.Context, projectID, itemID, fieldID string) error {
	req := graphql.NewRequest(`
		mutation($projectId: ID!, $itemId: ID!, $fieldId: ID!) {
			clearProjectV2ItemFieldValue(
				input: {
					projectId: $projectId
					itemId: $itemId
					fieldId: $fieldId
				}
			) {
				projectV2Item {
					id
				}
			}
		}
	`)

	req.Var("projectId", projectID)
	req.Var("itemId", itemID)
	req.Var("fieldId", fieldID)

	var resp struct {
		ClearProjectV2ItemFieldValue struct {
			ProjectV2Item struct {
				ID string `json:"id"`
			} `json:"projectV2Item"`
		} `json:"clearProjectV2ItemFieldValue"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return fmt.Errorf("failed to clear item field: %w", err)
	}
	return nil
}

// UpdateItemPosition places an item right after afterID in the project's
// manual ordering. An empty afterID moves the item to the top.
func (c *Client) UpdateItemPosition(ctx context.Context, projectID, itemID, afterID string) error {
	req := graphql.NewRequest(`
		mutation($projectId: ID!, $itemId: ID!, $afterId: ID) {
			updateProjectV2ItemPosition(
				input: {
					projectId: $projectId
					itemId: $itemId
					afterId: $afterId
				}
			) {
				items(first: 1) {
					totalCount
				}
			}
		}
	`)

	req.Var("projectId", projectID)
	req.Var("itemId", itemID)
	if afterID != "" {
		req.Var("afterId", afterID)
	} else {
		req.Var("afterId", nil)
	}

	var resp struct {
		UpdateProjectV2ItemPosition struct {
			Items struct {
				TotalCount int `json:"totalCount"`
			} `json:"items"`
		} `json:"updateProjectV2ItemPosition"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return fmt.Errorf("failed to update item position: %w", err)
	}
	return nil
}
