package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/insightdelivered/pfinance/internal/models"
)

// AddCategory creates an active category, or returns the id of the existing
// one with the same name.
func (s *Store) AddCategory(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("category name is empty")
	}
	var id int64
	err := s.changeRules(ctx, func(dbTx *sql.Tx) (bool, error) {
		r, err := dbTx.ExecContext(ctx, "INSERT OR IGNORE INTO categories (name) VALUES (?)", name)
		if err != nil {
			return false, fmt.Errorf("inserting category %q: %w", name, err)
		}
		if err := dbTx.QueryRowContext(ctx, "SELECT id FROM categories WHERE name = ?", name).Scan(&id); err != nil {
			return false, fmt.Errorf("looking up category %q: %w", name, err)
		}
		n, _ := r.RowsAffected()
		return n > 0, nil
	})
	return id, err
}

// CategoryByName returns the category called name.
func (s *Store) CategoryByName(ctx context.Context, name string) (models.Category, error) {
	c := models.Category{Name: name}
	err := s.db.QueryRowContext(ctx, "SELECT id, active FROM categories WHERE name = ?", name).Scan(&c.ID, &c.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("category %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return c, fmt.Errorf("looking up category %q: %w", name, err)
	}
	return c, nil
}

// SetCategoryActive enables or disables a category and, with it, its rules.
func (s *Store) SetCategoryActive(ctx context.Context, id int64, active bool) error {
	return s.changeRules(ctx, func(dbTx *sql.Tx) (bool, error) {
		r, err := dbTx.ExecContext(ctx, "UPDATE categories SET active = ? WHERE id = ?", active, id)
		if err != nil {
			return false, fmt.Errorf("updating category %d: %w", id, err)
		}
		if n, _ := r.RowsAffected(); n == 0 {
			return false, fmt.Errorf("category %d: %w", id, ErrNotFound)
		}
		return true, nil
	})
}

// ListCategories returns every category ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, active FROM categories ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	var cats []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Active); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// AddRule stores a rule for an existing category.
func (s *Store) AddRule(ctx context.Context, r models.CategoryRule) (int64, error) {
	if r.MatchType == "" {
		r.MatchType = models.MatchContains
	}
	if !r.MatchType.Valid() {
		return 0, fmt.Errorf("invalid match type %q", r.MatchType)
	}
	if strings.TrimSpace(r.Pattern) == "" {
		return 0, errors.New("rule pattern is empty")
	}
	var id int64
	err := s.changeRules(ctx, func(dbTx *sql.Tx) (bool, error) {
		res, err := dbTx.ExecContext(ctx,
			"INSERT INTO category_rules (category_id, pattern, match_type, priority, enabled) VALUES (?, ?, ?, ?, ?)",
			r.CategoryID, r.Pattern, string(r.MatchType), r.Priority, r.Enabled)
		if err != nil {
			return false, fmt.Errorf("inserting rule %q: %w", r.Pattern, err)
		}
		id, err = res.LastInsertId()
		return true, err
	})
	return id, err
}

// SetRuleEnabled toggles a rule.
func (s *Store) SetRuleEnabled(ctx context.Context, id int64, enabled bool) error {
	return s.changeRules(ctx, func(dbTx *sql.Tx) (bool, error) {
		r, err := dbTx.ExecContext(ctx, "UPDATE category_rules SET enabled = ? WHERE id = ?", enabled, id)
		if err != nil {
			return false, fmt.Errorf("updating rule %d: %w", id, err)
		}
		if n, _ := r.RowsAffected(); n == 0 {
			return false, fmt.Errorf("rule %d: %w", id, ErrNotFound)
		}
		return true, nil
	})
}

// RulesVersion changes whenever a category or rule is added or toggled, by
// this process or any other sharing the database.
func (s *Store) RulesVersion(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx,
		"SELECT CAST(value AS INTEGER) FROM settings WHERE key = ?", keyRulesVersion).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading rules version: %w", err)
	}
	return v, nil
}

// changeRules runs fn in a database transaction and bumps the rules version
// in the same transaction when fn reports a change.
func (s *Store) changeRules(ctx context.Context, fn func(*sql.Tx) (bool, error)) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	changed, err := fn(dbTx)
	if err != nil {
		return err
	}
	if changed {
		if _, err := dbTx.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, '1')
			ON CONFLICT(key) DO UPDATE SET value = CAST(value AS INTEGER) + 1`, keyRulesVersion); err != nil {
			return fmt.Errorf("bumping rules version: %w", err)
		}
	}
	return dbTx.Commit()
}

// ListRules returns every rule with its category name, in evaluation order.
func (s *Store) ListRules(ctx context.Context) ([]models.CategoryRule, error) {
	return s.queryRules(ctx, "")
}

// LoadActiveRules returns the enabled rules of active categories, ordered by
// priority ascending then pattern length descending.
func (s *Store) LoadActiveRules(ctx context.Context) ([]models.CategoryRule, error) {
	return s.queryRules(ctx, "WHERE r.enabled AND c.active")
}

func (s *Store) queryRules(ctx context.Context, where string) ([]models.CategoryRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT r.id, r.category_id, c.name, r.pattern, r.match_type, r.priority, r.enabled
		FROM category_rules r JOIN categories c ON c.id = r.category_id `+where+`
		ORDER BY r.priority ASC, length(r.pattern) DESC, r.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	var rules []models.CategoryRule
	for rows.Next() {
		var (
			r  models.CategoryRule
			mt string
		)
		if err := rows.Scan(&r.ID, &r.CategoryID, &r.Category, &r.Pattern, &mt, &r.Priority, &r.Enabled); err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		r.MatchType = models.MatchType(mt)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}
