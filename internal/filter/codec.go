package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidFilter is returned for filter trees that cannot be decoded or
// fail validation.
var ErrInvalidFilter = errors.New("invalid filter")

type childrenBody struct {
	Children []json.RawMessage `json:"children"`
}

type childBody struct {
	Child json.RawMessage `json:"child"`
}

// Marshal encodes n as JSON, tagging every node with its "type".
func Marshal(n Node) ([]byte, error) {
	var body any
	switch v := n.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil node", ErrInvalidFilter)
	case All:
		children, err := marshalChildren(v.Children)
		if err != nil {
			return nil, err
		}
		body = childrenBody{Children: children}
	case Any:
		children, err := marshalChildren(v.Children)
		if err != nil {
			return nil, err
		}
		body = childrenBody{Children: children}
	case Not:
		child, err := Marshal(v.Child)
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		body = childBody{Child: child}
	default:
		body = n
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s filter: %w", n.Kind(), err)
	}
	return withType(n.Kind(), raw), nil
}

func marshalChildren(children []Node) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(children))
	for i, c := range children {
		raw, err := Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		out = append(out, raw)
	}
	return out, nil
}

// withType splices the discriminator in front of an encoded JSON object.
func withType(k Kind, obj []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, `{"type":%q`, k.String())
	if len(obj) > 2 {
		b.WriteByte(',')
		b.Write(obj[1:])
	} else {
		b.WriteByte('}')
	}
	return b.Bytes()
}

// Unmarshal decodes a tree written by Marshal.
func Unmarshal(data []byte) (Node, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	kind, err := ParseKind(head.Type)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindName:
		return decode[Name](data)
	case KindAddress:
		return decode[Address](data)
	case KindManufacturer:
		return decode[Manufacturer](data)
	case KindIsFavorite:
		return decode[IsFavorite](data)
	case KindMinLostTime:
		return decode[MinLostTime](data)
	case KindFirstDetectionInterval:
		return decode[FirstDetectionInterval](data)
	case KindLastDetectionInterval:
		return decode[LastDetectionInterval](data)
	case KindAirdropContact:
		return decode[AirdropContact](data)
	case KindIsFollowing:
		return decode[IsFollowing](data)
	case KindDeviceLocation:
		return decode[DeviceLocation](data)
	case KindUserLocation:
		return decode[UserLocation](data)
	case KindTag:
		return decode[Tag](data)
	case KindAll:
		children, err := unmarshalChildren(data)
		if err != nil {
			return nil, fmt.Errorf("all: %w", err)
		}
		return All{Children: children}, nil
	case KindAny:
		children, err := unmarshalChildren(data)
		if err != nil {
			return nil, fmt.Errorf("any: %w", err)
		}
		return Any{Children: children}, nil
	case KindNot:
		var body childBody
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("%w: not: %v", ErrInvalidFilter, err)
		}
		if len(body.Child) == 0 || string(body.Child) == "null" {
			return nil, fmt.Errorf("%w: not without child", ErrInvalidFilter)
		}
		child, err := Unmarshal(body.Child)
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return Not{Child: child}, nil
	default:
		panic(fmt.Sprintf("filter: unhandled kind %s", kind))
	}
}

func decode[T Node](data []byte) (Node, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFilter, v.Kind(), err)
	}
	return v, nil
}

func unmarshalChildren(data []byte) ([]Node, error) {
	var body childrenBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	children := make([]Node, 0, len(body.Children))
	for i, raw := range body.Children {
		c, err := Unmarshal(raw)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		children = append(children, c)
	}
	return children, nil
}

// Expr embeds a filter tree in a larger JSON document. A null or missing
// value decodes to a nil Node.
type Expr struct {
	Node Node
}

// MarshalJSON implements json.Marshaler.
func (e Expr) MarshalJSON() ([]byte, error) {
	if e.Node == nil {
		return []byte("null"), nil
	}
	return Marshal(e.Node)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Expr) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		e.Node = nil
		return nil
	}
	n, err := Unmarshal(data)
	if err != nil {
		return err
	}
	e.Node = n
	return nil
}
