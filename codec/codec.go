// Package codec centralizes the encoding of self-describing documents such
// as backup manifests.
//
// Documents record the name of the codec that wrote them; readers select the
// decoder with ByName. Changing a codec's output is a format break.
package codec

import "fmt"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case JSON{}.Name():
		return JSON{}, true
	case GoJSON{}.Name():
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Decode unmarshals data with the codec registered under name.
func Decode(name string, data []byte, v any) error {
	c, ok := ByName(name)
	if !ok {
		return fmt.Errorf("codec: unknown codec %q", name)
	}
	if err := c.Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec %s: %w", name, err)
	}
	return nil
}
