package tenant

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tenant_configuration (
	id                   TEXT PRIMARY KEY,
	command_prefix       TEXT NOT NULL DEFAULT '',
	welcome_message_sent INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS tenant_module_options (
	tenant_id TEXT NOT NULL REFERENCES tenant_configuration(id) ON DELETE CASCADE,
	module_id TEXT NOT NULL,
	disabled  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (tenant_id, module_id)
);
CREATE TABLE IF NOT EXISTS tenant_command_options (
	tenant_id TEXT NOT NULL REFERENCES tenant_configuration(id) ON DELETE CASCADE,
	module_id TEXT NOT NULL,
	command   TEXT NOT NULL,
	disabled  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (tenant_id, module_id, command)
);
`

// SQLStore persists overrides in SQLite, one row per tenant plus one row
// per module and command option.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore opens (creating if needed) the database at dsn and migrates it.
func OpenSQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	s := &SQLStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate tenant tables: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Load(ctx context.Context, tenantID string) (*Overrides, error) {
	o := &Overrides{TenantID: tenantID}
	err := s.db.QueryRowContext(ctx,
		`SELECT command_prefix, welcome_message_sent FROM tenant_configuration WHERE id = ?`, tenantID,
	).Scan(&o.Prefix, &o.WelcomeMessageSent)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load tenant %s: %w", tenantID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT module_id FROM tenant_module_options WHERE tenant_id = ? AND disabled = 1 ORDER BY rowid`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load module options: %w", err)
	}
	for rows.Next() {
		var module string
		if err := rows.Scan(&module); err != nil {
			rows.Close()
			return nil, err
		}
		o.DisabledModules = append(o.DisabledModules, module)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT module_id, command FROM tenant_command_options WHERE tenant_id = ? AND disabled = 1 ORDER BY rowid`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load command options: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var module, command string
		if err := rows.Scan(&module, &command); err != nil {
			return nil, err
		}
		if o.DisabledCommands == nil {
			o.DisabledCommands = make(map[string][]string)
		}
		o.DisabledCommands[module] = append(o.DisabledCommands[module], command)
	}
	return o, rows.Err()
}

// Save replaces the tenant's rows in one transaction.
func (s *SQLStore) Save(ctx context.Context, o *Overrides) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO tenant_configuration (id, command_prefix, welcome_message_sent) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET command_prefix = excluded.command_prefix, welcome_message_sent = excluded.welcome_message_sent`,
		o.TenantID, o.Prefix, o.WelcomeMessageSent,
	); err != nil {
		return fmt.Errorf("save tenant %s: %w", o.TenantID, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM tenant_module_options WHERE tenant_id = ?`, o.TenantID); err != nil {
		return err
	}
	for _, module := range o.DisabledModules {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tenant_module_options (tenant_id, module_id, disabled) VALUES (?, ?, 1)`,
			o.TenantID, module,
		); err != nil {
			return err
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM tenant_command_options WHERE tenant_id = ?`, o.TenantID); err != nil {
		return err
	}
	for module, commands := range o.DisabledCommands {
		for _, command := range commands {
			if _, err = tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO tenant_command_options (tenant_id, module_id, command, disabled) VALUES (?, ?, ?, 1)`,
				o.TenantID, module, command,
			); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}
