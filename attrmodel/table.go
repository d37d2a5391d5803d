package attrmodel

// IndexKind distinguishes the three index shapes spec §4.2 describes.
type IndexKind int

const (
	// PartitionOnly is an index (global secondary or the table's own key
	// schema) with a single partition attribute and no sort attribute.
	PartitionOnly IndexKind = iota

	// PartitionAndSort is an index with both a partition and a sort
	// attribute.
	PartitionAndSort

	// PrimaryKeyIndex is an unnamed index over a synthesized "uniqueness"
	// attribute derived from pk (one per unique attribute on the accounts
	// table: accountId, userName, email, phone).
	PrimaryKeyIndex
)

// Index describes one queryable path into a table: either a declared
// secondary index (PartitionOnly or PartitionAndSort) or a primary-key
// lookup by a particular unique attribute (PrimaryKeyIndex, Unique set).
type Index struct {
	// Name is the DynamoDB index name, e.g. "owner-status-index". For a
	// PrimaryKeyIndex it is only a label (e.g. "by-userName") that is never
	// sent to DynamoDB, and it may be empty.
	Name string

	Kind IndexKind

	// Partition is the attribute used as the partition key of this index.
	Partition *Attribute

	// Sort is the attribute used as the sort key, nil for PartitionOnly.
	Sort *Attribute

	// Unique is set only for PrimaryKeyIndex: the unique attribute whose
	// value, combined with its UniquenessPrefix, forms pk.
	Unique *Attribute
}

// TableDescriptor enumerates a table's attributes, its queryable indexes,
// and the logical-path -> Attribute lookup the planner resolves filter
// terms through.
type TableDescriptor struct {
	// PhysicalName is the DynamoDB table name.
	PhysicalName string

	// Indexes lists every queryable path, in declaration order. Declaration
	// order is the planner's tie-break when more than one index could
	// serve a product (spec §4.4 step 4).
	Indexes []Index

	// attributeMap resolves a logical SCIM attribute path (e.g.
	// "userName", "name.familyName") to its physical Attribute.
	attributeMap map[string]*Attribute
}

// NewTableDescriptor builds a TableDescriptor from its physical name, index
// list, and path->attribute map. The map is copied so callers can freely
// mutate the map literal they passed in afterward.
func NewTableDescriptor(physicalName string, indexes []Index, attributeMap map[string]*Attribute) *TableDescriptor {
	m := make(map[string]*Attribute, len(attributeMap))
	for k, v := range attributeMap {
		m[k] = v
	}
	return &TableDescriptor{
		PhysicalName: physicalName,
		Indexes:      indexes,
		attributeMap: m,
	}
}

// Resolve maps a logical SCIM path to its Attribute. ok is false for
// unknown paths; callers must surface this as an unsupported-query error,
// never guess.
func (t *TableDescriptor) Resolve(path string) (attr *Attribute, ok bool) {
	attr, ok = t.attributeMap[path]
	return attr, ok
}

// PartitionIndexesFor returns every index (in declaration order) whose
// partition attribute is attr. Used by the planner to find candidate
// indexes for a term that equates attr to a literal.
func (t *TableDescriptor) PartitionIndexesFor(attr *Attribute) []Index {
	var out []Index
	for _, idx := range t.Indexes {
		if idx.Partition == attr {
			out = append(out, idx)
		}
	}
	return out
}
