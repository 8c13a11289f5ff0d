package jira

import (
	"strconv"
	"time"

	stringpool "github.com/atlasync/atlasync/pkg/strings"
)

// requestSpec captures what buildParams needs to know about one page
// request: paging parameter names, sorting and optional jql filtering.
type requestSpec struct {
	pageSize      int
	pageSizeParam string
	offsetParam   string

	sortKey string

	jqlFiltered bool
	baseFilter  string
	startDate   time.Time
	endDate     time.Time
}

func specFor(desc streamDescriptor, pageSize int, startDate, endDate time.Time) requestSpec {
	return requestSpec{
		pageSize:      pageSize,
		pageSizeParam: desc.pageSizeParam,
		offsetParam:   desc.offsetParam,
		sortKey:       desc.replicationKey,
		jqlFiltered:   desc.jqlFiltered,
		baseFilter:    desc.baseFilter,
		startDate:     startDate,
		endDate:       endDate,
	}
}

// buildParams assembles the query parameters for one page request. The
// page size is always sent; a sort key adds sort/order_by; a non-zero
// cursor adds the resource's offset parameter; jql resources get the
// assembled jql expression.
func buildParams(spec requestSpec, cursor int64) map[string]string {
	params := map[string]string{
		spec.pageSizeParam: strconv.Itoa(spec.pageSize),
	}

	if spec.sortKey != "" {
		params["sort"] = "asc"
		params["order_by"] = spec.sortKey
	}

	if cursor > 0 {
		params[spec.offsetParam] = strconv.FormatInt(cursor, 10)
	}

	if spec.jqlFiltered {
		if jql := buildJQL(spec.startDate, spec.endDate, spec.baseFilter, spec.sortKey); jql != "" {
			params["jql"] = jql
		}
	}

	return params
}

// jqlDate renders a single-quoted JQL date literal truncated to minute
// precision, the format Jira's JQL parser accepts for created/updated
// comparisons.
func jqlDate(t time.Time) string {
	return "'" + t.Format("2006-01-02 15:04") + "'"
}

// buildJQL assembles the date-bound filter expression. The clauses are
// ANDed in a fixed order: start bound, end bound, base filter. The
// start bound is inclusive, the end bound exclusive. A sort key appends
// an order by suffix.
func buildJQL(startDate, endDate time.Time, baseFilter, sortKey string) string {
	builder := stringpool.GetBuilder(stringpool.Small)
	defer stringpool.PutBuilder(builder, stringpool.Small)

	writeClause := func(clause string) {
		if builder.Len() > 0 {
			builder.WriteString(" and ")
		}
		builder.WriteString(clause)
	}

	if !startDate.IsZero() {
		lit := jqlDate(startDate)
		writeClause("(created>=" + lit + " or updated>=" + lit + ")")
	}

	if !endDate.IsZero() {
		lit := jqlDate(endDate)
		writeClause("(created<" + lit + " or updated<" + lit + ")")
	}

	if baseFilter != "" {
		writeClause("(" + baseFilter + ")")
	}

	if builder.Len() == 0 {
		return ""
	}

	if sortKey != "" {
		builder.WriteString(" order by ")
		builder.WriteString(sortKey)
		builder.WriteString(" asc")
	}

	return stringpool.Clone(builder.String())
}
