// Package schema is the small type system used to describe element config payloads.
//
// A Schema maps config field names to types. The validator uses it to type-check
// config fields that are present; presence itself is governed by the element
// kind's required fields, not by the schema.
//
//	s := schema.Schema{
//	    "question": schema.NonEmpty(schema.String()),
//	    "options":  schema.Slice(schema.String()),
//	    "max":      schema.Number(),
//	}
//	errs := schema.Check(s, element.Config)
package schema
