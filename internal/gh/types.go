package gh

// Project represents a GitHub Project v2 instance.
type Project struct {
	ID     string // GitHub Project node ID
	Number int    // Project number within the owner's namespace
	Title  string // Project title
	Owner  string // Owner login (organization or user)
}

// Field represents a project field definition with its metadata.
type Field struct {
	ID      string   // GitHub field node ID
	Name    string   // Field name (e.g., "Status")
	Type    string   // Field type (e.g., "SINGLE_SELECT", "TEXT", etc.)
	Options []Option // Available options for SINGLE_SELECT fields, in board order
}

// Option represents a single option value for a SINGLE_SELECT field.
type Option struct {
	ID    string // GitHub option node ID
	Name  string // Option name displayed to users (e.g., "In Progress", "Done")
	Color string // Option color (e.g., "GREEN", "YELLOW")
}

// Item is a project item (Issue, PR, or Draft) as returned by the API.
type Item struct {
	ID          string   // GitHub ProjectV2Item node ID
	ContentType string   // "Issue", "PullRequest", "DraftIssue" or "Private"
	Title       string   // Item title
	Body        string   // Issue/PR body
	URL         string   // Item URL (may be empty for drafts or private items)
	Repo        string   // Repository nameWithOwner, only for Issue/PR
	Number      int      // Issue/PR number, 0 for drafts/private
	OptionID    string   // Current value of the grouping field, empty if unset
	Labels      []string // Label names
	CreatedAt   string   // ISO8601 timestamp of creation
}

// FieldType constants for commonly used field types.
const (
	FieldTypeSingleSelect = "SINGLE_SELECT"
	FieldTypeText         = "TEXT"
	FieldTypeNumber       = "NUMBER"
	FieldTypeDate         = "DATE"
	FieldTypeIteration    = "ITERATION"
)

// ContentType constants for items.
const (
	ContentTypeIssue       = "Issue"
	ContentTypePullRequest = "PullRequest"
	ContentTypeDraftIssue  = "DraftIssue"
	ContentTypePrivate     = "Private"
)
