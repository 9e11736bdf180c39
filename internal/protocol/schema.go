package protocol

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const txSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["type", "protocol_version", "op"],
  "properties": {
    "type": {"const": "TX"},
    "protocol_version": {"type": "string"},
    "id": {"type": "string", "maxLength": 128},
    "op": {"type": "string", "pattern": "^(pie|lab|land|temple)\\.[a-z_]+$"},
    "caller": {"type": "string"},
    "target": {"type": "string"},
    "from": {"type": "string"},
    "to": {"type": "string"},
    "amount": {"$ref": "#/definitions/uint"},
    "amounts": {"type": "array", "items": {"$ref": "#/definitions/uint"}},
    "kind": {"type": "integer", "minimum": 0},
    "kinds": {"type": "array", "items": {"type": "integer", "minimum": 0}},
    "data": {"type": "string"},
    "approved": {"type": "boolean"},
    "combo": {"type": "string"},
    "prices": {"type": "array", "items": {"$ref": "#/definitions/uint"}},
    "parcel_id": {"type": "integer", "minimum": 0}
  },
  "definitions": {
    "uint": {"type": "string", "pattern": "^[0-9]{1,78}$"}
  }
}`

var (
	txSchemaOnce sync.Once
	txSchema     *jsonschema.Schema
	txSchemaErr  error
)

func compiledTxSchema() (*jsonschema.Schema, error) {
	txSchemaOnce.Do(func() {
		txSchema, txSchemaErr = jsonschema.CompileString("tx.schema.json", txSchemaJSON)
	})
	return txSchema, txSchemaErr
}

// ValidateTx checks a raw TX message against the wire schema.
func ValidateTx(raw []byte) error {
	s, err := compiledTxSchema()
	if err != nil {
		return fmt.Errorf("compile tx schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
