package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id BIGSERIAL PRIMARY KEY,
				tenant_id BIGINT NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				entity_type VARCHAR(16) NOT NULL CHECK (entity_type IN ('LEAD', 'CONTACT', 'DEAL')),
				trigger_name VARCHAR(16) NOT NULL DEFAULT 'EVENT',
				trigger_frequency VARCHAR(16) NOT NULL CHECK (trigger_frequency IN ('CREATED', 'UPDATED')),
				condition_type VARCHAR(32) NOT NULL CHECK (condition_type IN ('FOR_ALL', 'CONDITION_BASED')),
				condition_expression JSONB,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_by BIGINT NOT NULL,
				updated_by BIGINT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				CHECK ((condition_type = 'FOR_ALL') = (condition_expression IS NULL))
			);

			CREATE INDEX idx_workflows_selection ON workflows(tenant_id, entity_type, trigger_frequency) WHERE active;

			CREATE TABLE workflow_actions (
				id BIGSERIAL PRIMARY KEY,
				workflow_id BIGINT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				position INT NOT NULL,
				action_type VARCHAR(32) NOT NULL,
				payload JSONB NOT NULL,
				UNIQUE (workflow_id, position)
			);
		`,
		2: `
			ALTER TABLE workflows
				ADD COLUMN trigger_count BIGINT NOT NULL DEFAULT 0 CHECK (trigger_count >= 0),
				ADD COLUMN last_triggered_at TIMESTAMP WITH TIME ZONE;
		`,
	}
}
