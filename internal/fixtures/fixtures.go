// Package fixtures loads the portfolio dataset from a JSON document.
package fixtures

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/garnizeh/folio/internal/models"
	"github.com/qri-io/jsonschema"
)

//go:embed portfolio.schema.json
var schemaJSON []byte

// Dataset is an immutable, ordered snapshot of every collection.
type Dataset struct {
	entities map[models.Collection][]models.Entity
	index    map[models.Collection]map[string]models.Entity
}

// Schema compiles the embedded dataset schema.
func Schema() (*jsonschema.Schema, error) {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal(schemaJSON, rs); err != nil {
		return nil, fmt.Errorf("compile dataset schema: %w", err)
	}
	return rs, nil
}

// Load validates data against the dataset schema and decodes it. Record
// order within each collection is preserved; duplicate ids are rejected.
func Load(ctx context.Context, data []byte) (*Dataset, error) {
	rs, err := Schema()
	if err != nil {
		return nil, err
	}
	verrs, err := rs.ValidateBytes(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("validate dataset: %w", err)
	}
	if len(verrs) > 0 {
		var sb strings.Builder
		for _, v := range verrs {
			sb.WriteString(v.PropertyPath)
			sb.WriteString(": ")
			sb.WriteString(v.Message)
			sb.WriteString("; ")
		}
		return nil, fmt.Errorf("dataset does not match schema: %s", sb.String())
	}

	var raw map[string][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}

	ds := &Dataset{
		entities: make(map[models.Collection][]models.Entity, len(models.Collections)),
		index:    make(map[models.Collection]map[string]models.Entity, len(models.Collections)),
	}
	for name, items := range raw {
		c, err := models.ParseCollection(name)
		if err != nil {
			return nil, err
		}
		for i, item := range items {
			e, err := Decode(c, item)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", c, i, err)
			}
			if err := ds.add(c, e); err != nil {
				return nil, err
			}
		}
	}
	return ds, nil
}

// Decode decodes a single record of collection c.
func Decode(c models.Collection, b []byte) (models.Entity, error) {
	e, err := models.NewEntity(c)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c, err)
	}
	if err := models.Validate(e); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", c, err)
	}
	return e, nil
}

func (d *Dataset) add(c models.Collection, e models.Entity) error {
	idx, ok := d.index[c]
	if !ok {
		idx = make(map[string]models.Entity)
		d.index[c] = idx
	}
	if _, dup := idx[e.EntityID()]; dup {
		return fmt.Errorf("duplicate id %q in %s", e.EntityID(), c)
	}
	idx[e.EntityID()] = e
	d.entities[c] = append(d.entities[c], e)
	return nil
}

// Entities returns the records of c in file order. The slice is shared and
// must not be modified.
func (d *Dataset) Entities(c models.Collection) []models.Entity {
	return d.entities[c]
}

// Lookup returns the record of c with the given id.
func (d *Dataset) Lookup(c models.Collection, id string) (models.Entity, bool) {
	e, ok := d.index[c][id]
	return e, ok
}

// Len is the total number of records across all collections.
func (d *Dataset) Len() int {
	n := 0
	for _, es := range d.entities {
		n += len(es)
	}
	return n
}
