package database

import (
	"fmt"
	"strings"
)

const (
	columnID              = "id"
	columnName            = "name"
	columnDescription     = "description"
	columnTier            = "tier"
	columnStatus          = "status"
	columnDatabaseEnabled = "database_enabled"
	columnOwnerUserID     = "owner_user_id"
	columnCreatedAt       = "created_at"
	columnUpdatedAt       = "updated_at"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// projectColumns is the select list shared by every project query, in scan order.
var projectColumns = strings.Join([]string{
	columnID, columnName, columnDescription, columnTier, columnStatus,
	columnDatabaseEnabled, columnOwnerUserID, columnCreatedAt, columnUpdatedAt,
}, ", ")

// QueryBuilder helps build WHERE clauses safely
type QueryBuilder struct {
	conditions  []string
	args        []interface{}
	argCount    int
	placeholder func(n int) string
}

// NewQueryBuilder numbers placeholders Postgres-style ($1, $2, ...).
func NewQueryBuilder() *QueryBuilder {
	return newQueryBuilder(func(n int) string { return fmt.Sprintf("$%d", n) })
}

// NewSQLiteQueryBuilder uses positional ? placeholders.
func NewSQLiteQueryBuilder() *QueryBuilder {
	return newQueryBuilder(func(int) string { return "?" })
}

func newQueryBuilder(placeholder func(n int) string) *QueryBuilder {
	return &QueryBuilder{
		conditions:  []string{},
		args:        []interface{}{},
		argCount:    1,
		placeholder: placeholder,
	}
}

func (qb *QueryBuilder) AddCondition(column string, value interface{}) {
	qb.addComparison(column, "=", value)
}

func (qb *QueryBuilder) AddNotEqual(column string, value interface{}) {
	qb.addComparison(column, "<>", value)
}

func (qb *QueryBuilder) addComparison(column, op string, value interface{}) {
	qb.conditions = append(qb.conditions, fmt.Sprintf("%s %s %s", column, op, qb.placeholder(qb.argCount)))
	qb.args = append(qb.args, value)
	qb.argCount++
}

func (qb *QueryBuilder) WhereClause() string {
	if len(qb.conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(qb.conditions, " AND ")
}

func (qb *QueryBuilder) Args() []interface{} {
	return qb.args
}

func (qb *QueryBuilder) NextArgNum() int {
	return qb.argCount
}

// Placeholder returns the placeholder for the n-th argument.
func (qb *QueryBuilder) Placeholder(n int) string {
	return qb.placeholder(n)
}

// Helper functions

func validateLimit(limit, defaultLimit, maxLimit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func validateOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// Pagination clamps limit and offset the way every store does.
func Pagination(limit, offset int) (int, int) {
	return validateLimit(limit, defaultLimit, maxLimit), validateOffset(offset)
}
