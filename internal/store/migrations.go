package store

// migration is one schema step. The runner records its version.
type migration struct {
	version int
	sql     string
}

// migrations are applied in order; versions start at 1 with no gaps.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS drafts (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	account          TEXT NOT NULL DEFAULT '',
	text             TEXT NOT NULL,
	delivery_method  TEXT NOT NULL DEFAULT '',
	delivery_options TEXT NOT NULL DEFAULT '{}',
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_drafts_account ON drafts(account);
CREATE INDEX IF NOT EXISTS idx_drafts_created_at ON drafts(created_at);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS sends (
	id         TEXT PRIMARY KEY,
	draft_id   TEXT NOT NULL,
	message_id TEXT NOT NULL DEFAULT '',
	subject    TEXT NOT NULL DEFAULT '',
	method     TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL CHECK(status IN ('sent', 'failed')),
	error      TEXT NOT NULL DEFAULT '',
	warning    TEXT NOT NULL DEFAULT '',
	sent_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sends_draft_id ON sends(draft_id);
CREATE INDEX IF NOT EXISTS idx_sends_sent_at ON sends(sent_at);
`,
	},
}
