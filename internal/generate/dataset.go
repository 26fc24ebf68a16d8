package generate

// Row is one generated record: field name to value.
type Row map[string]any

// Dataset is the output of one generation run: rows per entity, entities in
// generation order. It is assembled by the coordinator and read-only after.
type Dataset struct {
	rows  map[string][]Row
	order []string
}

// NewDataset creates an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{rows: make(map[string][]Row)}
}

// Append adds rows to an entity, registering the entity on first use.
func (d *Dataset) Append(entity string, rows ...Row) {
	if _, ok := d.rows[entity]; !ok {
		d.order = append(d.order, entity)
	}
	d.rows[entity] = append(d.rows[entity], rows...)
}

// Rows returns the generated rows for an entity.
func (d *Dataset) Rows(entity string) []Row {
	return d.rows[entity]
}

// Entities returns entity names in generation order.
func (d *Dataset) Entities() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// TotalRows returns the row count across all entities.
func (d *Dataset) TotalRows() int {
	n := 0
	for _, rows := range d.rows {
		n += len(rows)
	}
	return n
}
