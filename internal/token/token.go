package token

// Type is the one-character tag that follows the marker of a marshalled unit.
type Type byte

// Marker opens every marshalled unit.
const Marker = "@SDT/"

const (
	// Special types
	ILLEGAL Type = 0 // An unknown or missing tag

	// Unit tags
	SCALAR   Type = '$' // @SDT/$S:<len>:<text> or @SDT/$0:0:
	LIST     Type = '[' // @SDT/[<count>:<len>:<items>
	MAP      Type = '{' // @SDT/{:<len>:<entries>
	INSTANCE Type = '%' // @SDT/%:<len>::<nameLen>:<name><values>
	CONTEXT  Type = '*' // @SDT/*:<len>:<map-class-map><root>
)

// Full unit prefixes, as written by the encoder.
const (
	NoneMarker     = Marker + "$0:0:"
	ScalarMarker   = Marker + "$S"
	ListMarker     = Marker + "["
	MapMarker      = Marker + "{"
	InstanceMarker = Marker + "%"
	ContextMarker  = Marker + "*"
)

// Reserved keys of the map-class machinery.
const (
	MapClassMapKey  = "map-class-map"
	MapClassNameKey = "staf-map-class-name"
	KeysKey         = "keys"
	NameKey         = "name"
	KeyKey          = "key"
	DisplayNameKey  = "display-name"
)

var tags = map[byte]Type{
	'$': SCALAR,
	'[': LIST,
	'{': MAP,
	'%': INSTANCE,
	'*': CONTEXT,
}

// Lookup returns the unit type for a tag character, or ILLEGAL when the
// character is not a known tag.
func Lookup(tag byte) Type {
	if t, ok := tags[tag]; ok {
		return t
	}
	return ILLEGAL
}

func (t Type) String() string {
	switch t {
	case SCALAR:
		return "scalar"
	case LIST:
		return "list"
	case MAP:
		return "map"
	case INSTANCE:
		return "map-class instance"
	case CONTEXT:
		return "context"
	default:
		return "illegal"
	}
}
