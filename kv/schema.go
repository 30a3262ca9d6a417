package kv

import (
	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/value"
)

// ReadSchema reads every object of the schema table. The transaction must
// hold a lock on the schema block.
func (tx *Transaction) ReadSchema() ([]catalog.Object, error) {
	tc := tx.OpenTable(catalog.SchemaTable())
	ok, err := tc.First()
	var objects []catalog.Object
	for ; ok && err == nil; ok, err = tc.Next() {
		row, rerr := tc.Row()
		if rerr != nil {
			return nil, rerr
		}
		objects = append(objects, objectFromRow(row))
	}
	if err != nil {
		return nil, err
	}
	return objects, nil
}

func objectFromRow(row []value.Value) catalog.Object {
	return catalog.Object{
		ObjectType:     row[1].Str(),
		Name:           row[2].Str(),
		TableName:      row[3].Str(),
		RootPageNumber: int(row[4].Long()),
		JSONSchema:     row[5].Str(),
	}
}

// WriteSchemaObject appends o to the schema table. The transaction must hold
// the schema block's write lock.
func (tx *Transaction) WriteSchemaObject(o catalog.Object) error {
	st := catalog.SchemaTable()
	id, err := tx.NewRowID(st)
	if err != nil {
		return err
	}
	return tx.InsertRow(st, id, []value.Value{
		value.LongValue(id),
		value.StringValue(o.ObjectType),
		value.StringValue(o.Name),
		value.StringValue(o.TableName),
		value.LongValue(int64(o.RootPageNumber)),
		value.StringValue(o.JSONSchema),
	})
}

// DeleteSchemaObjects removes every schema object match returns true for and
// returns how many were removed.
func (tx *Transaction) DeleteSchemaObjects(match func(catalog.Object) bool) (int, error) {
	st := catalog.SchemaTable()
	tc := tx.OpenTable(st)
	var ids []int64
	ok, err := tc.First()
	for ; ok && err == nil; ok, err = tc.Next() {
		row, rerr := tc.Row()
		if rerr != nil {
			return 0, rerr
		}
		if match(objectFromRow(row)) {
			ids = append(ids, tc.RowID())
		}
	}
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := tx.DeleteRow(st, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}
