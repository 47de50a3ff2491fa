// Package gh talks to the GitHub Projects v2 GraphQL API and exposes a
// project as a board whose card moves persist on GitHub.
package gh

import (
	"context"
	"errors"

	"github.com/machinebox/graphql"
)

// DefaultEndpoint is the public GitHub GraphQL endpoint.
const DefaultEndpoint = "https://api.github.com/graphql"

// Client is a GitHub GraphQL API client for Projects v2.
type Client struct {
	gql   *graphql.Client
	token string
}

// New creates a client for endpoint authenticating with token. An empty
// endpoint means DefaultEndpoint.
func New(endpoint, token string) (*Client, error) {
	if token == "" {
		return nil, errors.New("github token is empty")
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		gql:   graphql.NewClient(endpoint),
		token: token,
	}, nil
}

// makeRequest executes a GraphQL request with authentication.
func (c *Client) makeRequest(ctx context.Context, req *graphql.Request, resp interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.gql.Run(ctx, req, resp)
}
