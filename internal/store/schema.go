package store

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	provider TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	tool_calls TEXT, -- JSON array of core.ToolCall, arguments verbatim
	tool_call_id TEXT,
	name TEXT,
	created_at DATETIME NOT NULL,
	FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);

CREATE TABLE IF NOT EXISTS task_runs (
	id TEXT PRIMARY KEY, -- ULID
	request TEXT NOT NULL,
	status TEXT NOT NULL, -- running, completed, partial, failed, cancelled
	started_at DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS task_steps (
	run_id TEXT NOT NULL,
	step_index INTEGER NOT NULL,
	description TEXT NOT NULL,
	status TEXT NOT NULL, -- pending, succeeded, skipped
	attempts INTEGER NOT NULL DEFAULT 0,
	output TEXT,
	error TEXT,
	PRIMARY KEY(run_id, step_index),
	FOREIGN KEY(run_id) REFERENCES task_runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS system_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	level TEXT NOT NULL,
	component TEXT NOT NULL,
	message TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON system_logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_logs_level ON system_logs(level);
CREATE INDEX IF NOT EXISTS idx_logs_component ON system_logs(component);
`

// columnMigrations adds columns introduced after a table was first created.
var columnMigrations = []struct{ table, column, def string }{
	{"messages", "name", "TEXT"},
	{"sessions", "provider", "TEXT NOT NULL DEFAULT ''"},
	{"sessions", "model", "TEXT NOT NULL DEFAULT ''"},
	{"task_steps", "attempts", "INTEGER NOT NULL DEFAULT 0"},
}
