package pricing

import "errors"

// Schema identifies the commercial schema assigned to a customer. It decides
// which inputs of a sale line participate in the net price.
type Schema string

const (
	// SchemaStraight charges the plain list price.
	SchemaStraight Schema = "Straight"
	// SchemaListDisc charges the list price reduced by a discount percent.
	SchemaListDisc Schema = "List-Disc"
	// SchemaListDiscComm further reduces the discounted subtotal by a
	// commission, flat or percentage.
	SchemaListDiscComm Schema = "List-Disc-Comm"
)

// ErrUnknownSchema indicates a schema tag outside the supported set.
var ErrUnknownSchema = errors.New("pricing: unknown schema")

// ParseSchema validates a stored schema tag.
func ParseSchema(s string) (Schema, error) {
	switch Schema(s) {
	case SchemaStraight, SchemaListDisc, SchemaListDiscComm:
		return Schema(s), nil
	}
	return "", ErrUnknownSchema
}
