package gh

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/machinebox/graphql"
)

// OwnerType represents whether an owner is an organization or user.
type OwnerType string

const (
	OwnerTypeOrganization OwnerType = "Organization"
	OwnerTypeUser         OwnerType = "User"
)

// Owner represents an owner (user or organization) that can have projects.
type Owner struct {
	Login string
	ID    string
	Type  OwnerType
}

// itemPageSize is the number of items requested per page.
const itemPageSize = 100

// GetViewerAndOrgs returns the authenticated user followed by their
// organizations.
func (c *Client) GetViewerAndOrgs(ctx context.Context) ([]Owner, error) {
	req := graphql.NewRequest(`
		query {
			viewer {
				login
				id
				organizations(first: 100) {
					nodes {
						login
						id
					}
				}
			}
		}
	`)

	var resp struct {
		Viewer struct {
			Login         string `json:"login"`
			ID            string `json:"id"`
			Organizations struct {
				Nodes []struct {
					Login string `json:"login"`
					ID    string `json:"id"`
				} `json:"nodes"`
			} `json:"organizations"`
		} `json:"viewer"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to get viewer and orgs: %w", err)
	}

	owners := make([]Owner, 0, 1+len(resp.Viewer.Organizations.Nodes))
	owners = append(owners, Owner{Login: resp.Viewer.Login, ID: resp.Viewer.ID, Type: OwnerTypeUser})
	for _, org := range resp.Viewer.Organizations.Nodes {
		owners = append(owners, Owner{Login: org.Login, ID: org.ID, Type: OwnerTypeOrganization})
	}
	return owners, nil
}

// ResolveOwner determines if a login is an organization or user.
func (c *Client) ResolveOwner(ctx context.Context, login string) (Owner, error) {
	req := graphql.NewRequest(`
		query($login: String!) {
			organization(login: $login) {
				id
			}
			user(login: $login) {
				id
			}
		}
	`)
	req.Var("login", login)

	var resp struct {
		Organization *struct {
			ID string `json:"id"`
		} `json:"organization"`
		User *struct {
			ID string `json:"id"`
		} `json:"user"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return Owner{}, fmt.Errorf("failed to resolve owner: %w", err)
	}

	if resp.Organization != nil {
		return Owner{Login: login, ID: resp.Organization.ID, Type: OwnerTypeOrganization}, nil
	}
	if resp.User != nil {
		return Owner{Login: login, ID: resp.User.ID, Type: OwnerTypeUser}, nil
	}
	return Owner{}, fmt.Errorf("login '%s' not found (neither organization nor user)", login)
}

// ListProjects lists up to 100 projects of an owner.
func (c *Client) ListProjects(ctx context.Context, owner Owner) ([]Project, error) {
	req := graphql.NewRequest(fmt.Sprintf(`
		query($id: ID!, $first: Int!) {
			node(id: $id) {
				... on %s {
					projectsV2(first: $first) {
						nodes {
							id
							number
							title
						}
					}
				}
			}
		}
	`, owner.Type))
	req.Var("id", owner.ID)
	req.Var("first", 100)

	var resp struct {
		Node struct {
			ProjectsV2 struct {
				Nodes []struct {
					ID     string `json:"id"`
					Number int    `json:"number"`
					Title  string `json:"title"`
				} `json:"nodes"`
			} `json:"projectsV2"`
		} `json:"node"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	projects := make([]Project, 0, len(resp.Node.ProjectsV2.Nodes))
	for _, node := range resp.Node.ProjectsV2.Nodes {
		projects = append(projects, Project{ID: node.ID, Number: node.Number, Title: node.Title, Owner: owner.Login})
	}
	return projects, nil
}

// GetProject fetches a project by node ID.
func (c *Client) GetProject(ctx context.Context, projectID string) (Project, error) {
	req := graphql.NewRequest(`
		query($id: ID!) {
			node(id: $id) {
				... on ProjectV2 {
					id
					number
					title
					owner {
						... on Organization { login }
						... on User { login }
					}
				}
			}
		}
	`)
	req.Var("id", projectID)

	var resp struct {
		Node *struct {
			ID     string `json:"id"`
			Number int    `json:"number"`
			Title  string `json:"title"`
			Owner  struct {
				Login string `json:"login"`
			} `json:"owner"`
		} `json:"node"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return Project{}, fmt.Errorf("failed to get project: %w", err)
	}
	if resp.Node == nil || resp.Node.ID == "" {
		return Project{}, fmt.Errorf("project %s not found", projectID)
	}
	return Project{ID: resp.Node.ID, Number: resp.Node.Number, Title: resp.Node.Title, Owner: resp.Node.Owner.Login}, nil
}

// GetProjectFields fetches all fields of a project. SINGLE_SELECT options
// come back in the order the project UI shows them.
func (c *Client) GetProjectFields(ctx context.Context, projectID string) ([]Field, error) {
	req := graphql.NewRequest(`
		query($projectId: ID!) {
			node(id: $projectId) {
				... on ProjectV2 {
					fields(first: 50) {
						nodes {
							... on ProjectV2Field {
								id
								name
								dataType
							}
							... on ProjectV2SingleSelectField {
								id
								name
								dataType
								options {
									id
									name
									color
								}
							}
							... on ProjectV2IterationField {
								id
								name
								dataType
							}
						}
					}
				}
			}
		}
	`)
	req.Var("projectId", projectID)

	var resp struct {
		Node struct {
			Fields struct {
				Nodes []struct {
					ID       string `json:"id"`
					Name     string `json:"name"`
					DataType string `json:"dataType"`
					Options  []struct {
						ID    string `json:"id"`
						Name  string `json:"name"`
						Color string `json:"color"`
					} `json:"options"`
				} `json:"nodes"`
			} `json:"fields"`
		} `json:"node"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to get project fields: %w", err)
	}

	fields := make([]Field, 0, len(resp.Node.Fields.Nodes))
	for _, node := range resp.Node.Fields.Nodes {
		field := Field{ID: node.ID, Name: node.Name, Type: node.DataType}
		if node.DataType == FieldTypeSingleSelect {
			for _, opt := range node.Options {
				field.Options = append(field.Options, Option{ID: opt.ID, Name: opt.Name, Color: opt.Color})
			}
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// GetItems fetches one page of project items with the value of the
// grouping field. It returns the items, the next cursor and whether more
// pages exist.
func (c *Client) GetItems(ctx context.Context, projectID, groupFieldName, cursor string, limit int) ([]Item, string, bool, error) {
	req := graphql.NewRequest(`
		query($projectId: ID!, $first: Int!, $after: String, $fieldName: String!) {
			node(id: $projectId) {
				... on ProjectV2 {
					items(first: $first, after: $after) {
						pageInfo {
							hasNextPage
							endCursor
						}
						nodes {
							id
							fieldValueByName(name: $fieldName) {
								... on ProjectV2ItemFieldSingleSelectValue {
									optionId
								}
							}
							content {
								__typename
								... on Issue {
									title
									body
									url
									number
									createdAt
									repository {
										nameWithOwner
									}
									labels(first: 10) {
										nodes {
											name
										}
									}
								}
								... on PullRequest {
									title
									body
									url
									number
									createdAt
									repository {
										nameWithOwner
									}
									labels(first: 10) {
										nodes {
											name
										}
									}
								}
								... on DraftIssue {
									title
									body
									createdAt
								}
							}
						}
					}
				}
			}
		}
	`)
	req.Var("projectId", projectID)
	req.Var("first", limit)
	req.Var("fieldName", groupFieldName)
	if cursor != "" {
		req.Var("after", cursor)
	} else {
		req.Var("after", nil)
	}

	var resp struct {
		Node struct {
			Items struct {
				PageInfo struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
				Nodes []struct {
					ID               string `json:"id"`
					FieldValueByName *struct {
						OptionID string `json:"optionId"`
					} `json:"fieldValueByName"`
					Content *struct {
						Typename   string `json:"__typename"`
						Title      string `json:"title"`
						Body       string `json:"body"`
						URL        string `json:"url"`
						Number     int    `json:"number"`
						CreatedAt  string `json:"createdAt"`
						Repository *struct {
							NameWithOwner string `json:"nameWithOwner"`
						} `json:"repository"`
						Labels *struct {
							Nodes []struct {
								Name string `json:"name"`
							} `json:"nodes"`
						} `json:"labels"`
					} `json:"content"`
				} `json:"nodes"`
			} `json:"items"`
		} `json:"node"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return nil, "", false, fmt.Errorf("failed to get items: %w", err)
	}

	items := make([]Item, 0, len(resp.Node.Items.Nodes))
	for _, node := range resp.Node.Items.Nodes {
		item := Item{ID: node.ID}
		if node.FieldValueByName != nil {
			item.OptionID = node.FieldValueByName.OptionID
		}

		if node.Content == nil {
			// Null content (private or deleted item)
			item.ContentType = ContentTypePrivate
			item.Title = "(private item)"
			items = append(items, item)
			continue
		}

		item.CreatedAt = node.Content.CreatedAt
		if node.Content.Labels != nil {
			for _, l := range node.Content.Labels.Nodes {
				item.Labels = append(item.Labels, l.Name)
			}
		}

		switch node.Content.Typename {
		case ContentTypeIssue, ContentTypePullRequest:
			item.ContentType = node.Content.Typename
			item.Title = node.Content.Title
			item.Body = node.Content.Body
			item.URL = node.Content.URL
			item.Number = node.Content.Number
			if node.Content.Repository != nil {
				item.Repo = node.Content.Repository.NameWithOwner
			}
		case ContentTypeDraftIssue:
			item.ContentType = ContentTypeDraftIssue
			item.Title = node.Content.Title
			item.Body = node.Content.Body
		default:
			item.ContentType = ContentTypePrivate
			item.Title = "(unknown item type)"
		}
		items = append(items, item)
	}

	return items, resp.Node.Items.PageInfo.EndCursor, resp.Node.Items.PageInfo.HasNextPage, nil
}

// GetAllItems follows pagination until every item is fetched.
func (c *Client) GetAllItems(ctx context.Context, projectID, groupFieldName string) ([]Item, error) {
	var (
		all    []Item
		cursor string
	)
	for {
		page, next, more, err := c.GetItems(ctx, projectID, groupFieldName, cursor, itemPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if !more || next == "" {
			return all, nil
		}
		cursor = next
	}
}

// SelectGroupField picks the field whose options become board columns:
//  1. a SINGLE_SELECT field named "Status" (case-insensitive);
//  2. else the only SINGLE_SELECT field;
//  3. else the candidates are returned for the caller to choose from.
//
// It fails when the project has no SINGLE_SELECT field.
func SelectGroupField(fields []Field) (selected *Field, candidates []Field, err error) {
	var singleSelect []Field
	for _, f := range fields {
		if f.Type == FieldTypeSingleSelect {
			singleSelect = append(singleSelect, f)
		}
	}

	if len(singleSelect) == 0 {
		return nil, nil, errors.New("no SINGLE_SELECT fields found in project")
	}

	for i := range singleSelect {
		if strings.EqualFold(singleSelect[i].Name, "Status") {
			return &singleSelect[i], nil, nil
		}
	}

	if len(singleSelect) == 1 {
		return &singleSelect[0], nil, nil
	}

	return nil, singleSelect, nil
}

// FieldByName returns the SINGLE_SELECT field with the given name
// (case-insensitive).
func FieldByName(fields []Field, name string) (*Field, error) {
	for i := range fields {
		if fields[i].Type == FieldTypeSingleSelect && strings.EqualFold(fields[i].Name, name) {
			return &fields[i], nil
		}
	}
	return nil, fmt.Errorf("no SINGLE_SELECT field named %q", name)
}
