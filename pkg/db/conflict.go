package db

// InsertOrFetch runs insert and, when it fails on a uniqueness violation,
// calls fetch exactly once so the caller can re-apply its rule to the row
// that won the race. inserted reports which path produced value.
func InsertOrFetch[T any](insert func() (T, error), fetch func() (T, error)) (value T, inserted bool, err error) {
	value, err = insert()
	if err == nil {
		return value, true, nil
	}
	if !IsUniqueViolation(err, "") {
		return value, false, err
	}
	value, err = fetch()
	return value, false, err
}
