package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE flow_runs (
				id VARCHAR(255) PRIMARY KEY,
				flow_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				trigger VARCHAR(255),
				summary JSONB NOT NULL,
				error_code VARCHAR(100),
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				ended_at TIMESTAMP WITH TIME ZONE,
				duration_ms BIGINT NOT NULL DEFAULT 0
			);

			CREATE INDEX idx_flow_runs_flow_id ON flow_runs(flow_id);
			CREATE INDEX idx_flow_runs_status ON flow_runs(status);
			CREATE INDEX idx_flow_runs_started_at ON flow_runs(started_at);
		`,
	}
}
