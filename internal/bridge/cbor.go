package bridge

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"

	"github.com/fxamacker/cbor/v2"

	sdt "github.com/KimNorgaard/go-sdt"
	"github.com/KimNorgaard/go-sdt/internal/token"
)

// encMode writes Core Deterministic Encoding (RFC 8949 §4.2): map keys are
// sorted, so map key order does not survive a trip through CBOR.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("bridge: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		MaxNestedLevels: maxDepth,
	}.DecMode()
	if err != nil {
		panic("bridge: CBOR decoder initialization failed: " + err.Error())
	}
}

// ToCBOR encodes v as CBOR. Scalars are text strings, None is null and
// instances are maps with a staf-map-class-name key.
func ToCBOR(v sdt.Value) ([]byte, error) {
	native, err := toNative(v, 0)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(native)
}

func toNative(v sdt.Value, depth int) (any, error) {
	if depth > maxDepth {
		return nil, errTooDeep
	}
	switch x := v.(type) {
	case nil, sdt.None:
		return nil, nil
	case sdt.Scalar:
		return string(x), nil
	case sdt.List:
		out := make([]any, 0, len(x))
		for _, item := range x {
			n, err := toNative(item, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case *sdt.Map:
		return nativeMap(x, "", depth)
	case *sdt.Instance:
		return nativeMap(&x.Map, x.Class, depth)
	default:
		return nil, fmt.Errorf("bridge: unsupported value %T", v)
	}
}

func nativeMap(m *sdt.Map, class string, depth int) (map[string]any, error) {
	out := make(map[string]any, m.Len()+1)
	for k, item := range m.All() {
		n, err := toNative(item, depth+1)
		if err != nil {
			return nil, err
		}
		out[k] = n
	}
	if class != "" {
		out[token.MapClassNameKey] = class
	}
	return out, nil
}

// FromCBOR decodes a single CBOR data item into a Value. Numbers, booleans
// and byte strings become Scalars in their text form; map keys are taken in
// sorted order.
func FromCBOR(data []byte) (sdt.Value, error) {
	var native any
	if err := decMode.Unmarshal(data, &native); err != nil {
		return nil, fmt.Errorf("bridge: parse cbor: %w", err)
	}
	return fromNative(native, 0)
}

func fromNative(x any, depth int) (sdt.Value, error) {
	if depth > maxDepth {
		return nil, errTooDeep
	}
	switch n := x.(type) {
	case nil:
		return sdt.None{}, nil
	case string:
		return sdt.Scalar(n), nil
	case []byte:
		return sdt.Scalar(n), nil
	case bool:
		return sdt.Scalar(strconv.FormatBool(n)), nil
	case uint64:
		return sdt.Scalar(strconv.FormatUint(n, 10)), nil
	case int64:
		return sdt.Scalar(strconv.FormatInt(n, 10)), nil
	case float32:
		return sdt.Scalar(strconv.FormatFloat(float64(n), 'g', -1, 32)), nil
	case float64:
		return sdt.Scalar(strconv.FormatFloat(n, 'g', -1, 64)), nil
	case []any:
		list := make(sdt.List, 0, len(n))
		for _, item := range n {
			v, err := fromNative(item, depth+1)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case map[string]any:
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		m := sdt.NewMap()
		for _, k := range keys {
			v, err := fromNative(n[k], depth+1)
			if err != nil {
				return nil, err
			}
			m.Set(k, v)
		}
		return promote(m), nil
	default:
		return nil, fmt.Errorf("bridge: unsupported cbor item of type %T", x)
	}
}
