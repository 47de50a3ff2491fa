package repo

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Versions must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS boards (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	position   INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS columns (
	id       TEXT PRIMARY KEY,
	board_id TEXT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
	name     TEXT NOT NULL,
	position INTEGER NOT NULL,
	color    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS cards (
	id          TEXT PRIMARY KEY,
	column_id   TEXT NOT NULL REFERENCES columns(id) ON DELETE CASCADE,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	position    INTEGER NOT NULL,
	color       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_columns_board ON columns(board_id, position);
CREATE INDEX IF NOT EXISTS idx_cards_column ON cards(column_id, position);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS checklist_items (
	id       TEXT PRIMARY KEY,
	card_id  TEXT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
	text     TEXT NOT NULL,
	checked  INTEGER NOT NULL DEFAULT 0,
	position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS attachments (
	id      TEXT PRIMARY KEY,
	card_id TEXT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
	name    TEXT NOT NULL,
	url     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS labels (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL UNIQUE,
	color TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS card_labels (
	card_id  TEXT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
	label_id TEXT NOT NULL REFERENCES labels(id) ON DELETE CASCADE,
	PRIMARY KEY (card_id, label_id)
);

CREATE INDEX IF NOT EXISTS idx_checklist_card ON checklist_items(card_id, position);
CREATE INDEX IF NOT EXISTS idx_attachments_card ON attachments(card_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
