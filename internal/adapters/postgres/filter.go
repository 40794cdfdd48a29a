package postgres

import (
	"fmt"
	"time"

	"github.com/keygate/license-service/internal/domain"
	"github.com/keygate/license-service/internal/ports"
	"gorm.io/gorm"
)

// licenseColumns is the allowlist of filterable/orderable license columns.
// Criteria arrive as plain values (field, op, values) and are interpreted
// here; nothing executable ever crosses the store boundary.
var licenseColumns = map[string]bool{
	"user_id":    true,
	"status":     true,
	"created_at": true,
	"expires_at": true,
}

// timeColumns need their string values parsed before comparison so Postgres
// compares timestamps, not text.
var timeColumns = map[string]bool{
	"created_at": true,
	"expires_at": true,
}

func applyLicenseCriteria(query *gorm.DB, criteria []ports.Criteria) (*gorm.DB, error) {
	for _, clause := range criteria {
		if !licenseColumns[clause.Field] {
			return nil, fmt.Errorf("%w: unknown filter field %q", domain.ErrInvalidInput, clause.Field)
		}
		if len(clause.Values) == 0 {
			return nil, fmt.Errorf("%w: filter %q has no values", domain.ErrInvalidInput, clause.Field)
		}
		values, err := convertValues(clause.Field, clause.Values)
		if err != nil {
			return nil, err
		}
		switch clause.Op {
		case ports.OpEq:
			query = query.Where(clause.Field+" = ?", values[0])
		case ports.OpNeq:
			query = query.Where(clause.Field+" <> ?", values[0])
		case ports.OpIn:
			query = query.Where(clause.Field+" IN ?", values)
		case ports.OpBefore:
			query = query.Where(clause.Field+" < ?", values[0])
		case ports.OpAfter:
			query = query.Where(clause.Field+" > ?", values[0])
		default:
			return nil, fmt.Errorf("%w: unknown filter op %q", domain.ErrInvalidInput, clause.Op)
		}
	}
	return query, nil
}

func applyLicenseOrder(query *gorm.DB, opts ports.ListOptions) (*gorm.DB, error) {
	opts = opts.Normalize()
	orderBy := opts.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	if !licenseColumns[orderBy] {
		return nil, fmt.Errorf("%w: unknown order field %q", domain.ErrInvalidInput, orderBy)
	}
	direction := "ASC"
	if opts.Descending {
		direction = "DESC"
	}
	return query.Order(orderBy + " " + direction).Limit(opts.PerPage).Offset(opts.Offset()), nil
}

func convertValues(field string, raw []string) ([]any, error) {
	out := make([]any, 0, len(raw))
	for _, value := range raw {
		if timeColumns[field] {
			parsed, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return nil, fmt.Errorf("%w: filter %q expects RFC3339 time", domain.ErrInvalidInput, field)
			}
			out = append(out, parsed)
			continue
		}
		out = append(out, value)
	}
	return out, nil
}
