package table

import "errors"

// ErrInvalidInput reports a table whose column types cannot be resolved
// because it has columns but no rows. Classify still returns usable roles.
var ErrInvalidInput = errors.New("table: column types cannot be inferred from an empty result")

// Role is the part a column can play in a chart.
type Role string

const (
	RoleTemporal    Role = "temporal"
	RoleNumeric     Role = "numeric"
	RoleCategorical Role = "categorical"
)

// Roles partitions every column of a table into exactly one role. Each list
// keeps table column order.
type Roles struct {
	Temporal    []string `json:"temporal" yaml:"temporal"`
	Numeric     []string `json:"numeric" yaml:"numeric"`
	Categorical []string `json:"categorical" yaml:"categorical"`
}

// Empty reports whether no column was classified.
func (r Roles) Empty() bool {
	return len(r.Temporal) == 0 && len(r.Numeric) == 0 && len(r.Categorical) == 0
}

// Of returns the role of a column.
func (r Roles) Of(name string) (Role, bool) {
	for _, set := range []struct {
		role  Role
		names []string
	}{{RoleTemporal, r.Temporal}, {RoleNumeric, r.Numeric}, {RoleCategorical, r.Categorical}} {
		for _, n := range set.names {
			if n == name {
				return set.role, true
			}
		}
	}
	return "", false
}

// Classify splits the columns of t into temporal, numeric and categorical
// roles. Unknown columns are categorical. When t has columns but no rows
// and some column type is unknown, every column is categorical and
// ErrInvalidInput is returned alongside the roles.
func Classify(t *Table) (Roles, error) {
	var r Roles
	if t.Width() == 0 {
		return r, nil
	}
	if t.Len() == 0 {
		for _, c := range t.cols {
			if c.Kind == KindUnknown {
				r.Categorical = t.Names()
				return r, ErrInvalidInput
			}
		}
	}
	for _, c := range t.cols {
		switch c.Kind {
		case KindTemporal:
			r.Temporal = append(r.Temporal, c.Name)
		case KindInteger, KindFloat:
			r.Numeric = append(r.Numeric, c.Name)
		default:
			r.Categorical = append(r.Categorical, c.Name)
		}
	}
	return r, nil
}
