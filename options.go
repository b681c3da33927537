package sdt

import "github.com/rs/zerolog"

const (
	defaultMaxDepth = 1000
	defaultIndent   = 2
)

// Option configures marshalling, unmarshalling and formatting. Options that do
// not apply to an operation are ignored by it.
type Option func(*options)

type options struct {
	maxDepth       int
	indent         int
	ignoreIndirect bool
	base           *Context
	logger         zerolog.Logger
}

func newOptions(opts []Option) *options {
	o := &options{
		maxDepth: defaultMaxDepth,
		indent:   defaultIndent,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// MaxDepth sets the maximum nesting depth. Encoding deeper values fails with
// a DepthError; decoding falls back to literal text for the unit that crosses
// the limit. Values below 1 leave the default of 1000 in place.
func MaxDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// Indent sets the number of spaces per nesting level used by Format.
// Negative values leave the default of 2 in place.
func Indent(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.indent = n
		}
	}
}

// IgnoreIndirectObjects stops the decoder from unmarshalling scalars whose
// text is itself marshalled data. Such scalars are kept as literal strings,
// so a marshalled Scalar always unmarshals to the same Scalar.
func IgnoreIndirectObjects() Option {
	return func(o *options) {
		o.ignoreIndirect = true
	}
}

// WithContext supplies the map classes used to resolve map-class instances
// when the data being decoded is not itself a context. Unmarshal copies its
// classes into the context it returns. FormatValue uses it for display names.
func WithContext(c *Context) Option {
	return func(o *options) {
		o.base = c
	}
}

// Logger sets the logger that receives debug events, such as the reason a
// unit fell back to literal text. The default discards everything.
func Logger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
