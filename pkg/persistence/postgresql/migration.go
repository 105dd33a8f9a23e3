package postgresql

// migrations returns the versioned schema for the execution ledger.
// node_executions carries a serial seq so ledger rows keep visitation order
// independent of clock resolution.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS flows (
				id TEXT PRIMARY KEY,
				definition JSONB NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS flow_executions (
				id TEXT PRIMARY KEY,
				flow_id TEXT NOT NULL,
				subscriber_id TEXT NOT NULL,
				channel TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				error_message TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMPTZ NOT NULL,
				completed_at TIMESTAMPTZ
			);

			CREATE INDEX IF NOT EXISTS flow_executions_status_idx ON flow_executions (status, started_at);
			CREATE INDEX IF NOT EXISTS flow_executions_flow_idx ON flow_executions (flow_id);
			CREATE INDEX IF NOT EXISTS flow_executions_subscriber_idx ON flow_executions (subscriber_id);

			CREATE TABLE IF NOT EXISTS node_executions (
				id TEXT PRIMARY KEY,
				seq BIGSERIAL,
				flow_execution_id TEXT NOT NULL REFERENCES flow_executions (id),
				node_id TEXT NOT NULL,
				node_type TEXT NOT NULL,
				status TEXT NOT NULL,
				execution_time_ms BIGINT NOT NULL DEFAULT 0,
				error_message TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL
			);

			CREATE INDEX IF NOT EXISTS node_executions_execution_idx ON node_executions (flow_execution_id, seq);

			CREATE TABLE IF NOT EXISTS user_inputs (
				flow_execution_id TEXT NOT NULL REFERENCES flow_executions (id),
				input_node_id TEXT NOT NULL,
				variable_name TEXT NOT NULL,
				value TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (flow_execution_id, variable_name)
			);
		`,
	}
}
