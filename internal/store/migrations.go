package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS channel_events (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	data        TEXT NOT NULL DEFAULT '{}',
	received_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_channel_events_received_at ON channel_events(received_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_channel_events_name_received
	ON channel_events(name, received_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
