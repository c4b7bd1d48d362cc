// Package diff classifies a desired record against an optional existing one.
//
// Only fields named by a Schema participate: immutable fields decide Conflict,
// allow-listed mutable fields decide Update versus Skip, and everything else
// (audit timestamps, ids) is ignored. Classify is pure.
package diff

// Kind is the outcome of a classification.
type Kind string

const (
	Create   Kind = "create"
	Update   Kind = "update"
	Skip     Kind = "skip"
	Conflict Kind = "conflict"
)

// Field reads one comparable value out of a record.
type Field[T any] struct {
	Name string
	Get  func(T) string
	// Equal overrides plain string equality, e.g. for case-insensitive fields.
	Equal func(a, b string) bool
}

func (f Field[T]) equal(a, b string) bool {
	if f.Equal != nil {
		return f.Equal(a, b)
	}
	return a == b
}

// Schema lists the fields compared for one entity type.
type Schema[T any] struct {
	// Immutable fields must match; a difference is a Conflict.
	Immutable []Field[T]
	// Mutable is the allow-list of fields an Update may change.
	Mutable []Field[T]
}

// Change is one differing field, existing value first.
type Change struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// Result is the classification plus the differing fields that produced it.
type Result struct {
	Kind    Kind     `json:"kind"`
	Changes []Change `json:"changes,omitempty"`
}

// Classify compares desired against existing. A nil existing yields Create.
// Changes are listed in schema order, so the result does not depend on map
// iteration or call order.
func (s Schema[T]) Classify(desired T, existing *T) Result {
	if existing == nil {
		return Result{Kind: Create}
	}

	if conflicts := compare(s.Immutable, desired, *existing); len(conflicts) > 0 {
		return Result{Kind: Conflict, Changes: conflicts}
	}

	if changes := compare(s.Mutable, desired, *existing); len(changes) > 0 {
		return Result{Kind: Update, Changes: changes}
	}

	return Result{Kind: Skip}
}

// FieldNames returns the allow-listed mutable field names.
func (s Schema[T]) FieldNames() []string {
	names := make([]string, len(s.Mutable))
	for i, f := range s.Mutable {
		names[i] = f.Name
	}
	return names
}

func compare[T any](fields []Field[T], desired, existing T) []Change {
	var changes []Change
	for _, f := range fields {
		from, to := f.Get(existing), f.Get(desired)
		if !f.equal(from, to) {
			changes = append(changes, Change{Field: f.Name, From: from, To: to})
		}
	}
	return changes
}
