package api

import "fmt"

// SchemaError reports a required source column that could not be mapped
// to a canonical field. Fatal for the load attempt, not for the process.
type SchemaError struct {
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: no source column maps to required field %q", e.Field)
}

// DataQualityError reports that too many source rows were malformed.
type DataQualityError struct {
	BadRows   int
	TotalRows int
	Threshold float64
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality: %d of %d rows malformed, exceeds threshold %.2f",
		e.BadRows, e.TotalRows, e.Threshold)
}

// InvalidFilterError reports a malformed filter predicate, such as a
// start date after the end date.
type InvalidFilterError struct {
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return "invalid filter: " + e.Reason
}

// InvalidQueryError reports a query expression that references an
// unknown field or a disallowed operation.
type InvalidQueryError struct {
	Expression string
	Reason     string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query %q: %s", e.Expression, e.Reason)
}
