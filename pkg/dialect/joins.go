package dialect

import "github.com/leapstack-labs/leapquery/pkg/core"

// ANSIJoins contains the join operators every dialect can spell.
// A singleton left outer join is an ordinary LEFT OUTER JOIN in SQL.
var ANSIJoins = map[core.JoinType]string{
	core.CrossJoin:          "CROSS JOIN",
	core.InnerJoin:          "INNER JOIN",
	core.LeftOuter:          "LEFT OUTER JOIN",
	core.SingletonLeftOuter: "LEFT OUTER JOIN",
}

// LateralJoins spells apply operators as LATERAL joins (PostgreSQL, DuckDB).
// The formatter adds ON TRUE after an outer lateral join.
var LateralJoins = map[core.JoinType]string{
	core.CrossApply: "CROSS JOIN LATERAL",
	core.OuterApply: "LEFT JOIN LATERAL",
}

// ApplyJoins spells apply operators natively (SQL Server).
var ApplyJoins = map[core.JoinType]string{
	core.CrossApply: "CROSS APPLY",
	core.OuterApply: "OUTER APPLY",
}

func cloneJoins(m map[core.JoinType]string) map[core.JoinType]string {
	out := make(map[core.JoinType]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
