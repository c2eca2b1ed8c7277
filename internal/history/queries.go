package history

const (
	queryGetSession = `
		SELECT user_id, wallet_address, is_member, created_at, updated_at
		FROM session WHERE id = 'local'`

	queryInsertSession = `
		INSERT INTO session (id, user_id, wallet_address, is_member)
		VALUES ('local', ?, ?, ?)`

	queryUpdateWallet = `
		UPDATE session SET wallet_address = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = 'local'`

	queryUpdateMember = `
		UPDATE session SET is_member = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = 'local'`

	queryLookupAudit = `
		SELECT address, score, warnings, vitals, milestones, cost_deducted,
		       credit_source, report_hash, is_proxy, created_at
		FROM audit_history WHERE address = ?`

	queryUpsertAudit = `
		INSERT INTO audit_history
			(address, score, warnings, vitals, milestones, cost_deducted,
			 credit_source, report_hash, is_proxy, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(address) DO UPDATE SET
			score = excluded.score,
			warnings = excluded.warnings,
			vitals = excluded.vitals,
			milestones = excluded.milestones,
			cost_deducted = excluded.cost_deducted,
			credit_source = excluded.credit_source,
			report_hash = excluded.report_hash,
			is_proxy = excluded.is_proxy,
			created_at = CURRENT_TIMESTAMP`

	queryInsertActivity = `
		INSERT INTO activity
			(id, type, description, amount_eth, credits, address, score, report_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryListActivity = `
		SELECT id, type, description, amount_eth, credits, address, score,
		       report_hash, created_at
		FROM activity
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`
)
