package gen

import (
	"fmt"
	"strings"

	"github.com/pankcuf/ferment-sub000/config"
)

// ConversionKind is the classification of a type at the FFI boundary.
type ConversionKind int

const (
	KindPrimitive ConversionKind = iota
	KindOpaque
	KindComplex
	KindString
	KindStrSlice
	KindSlice
	KindArray
	KindVec
	KindMap
	KindResult
	KindOption
	KindTuple
	KindBoxed
	KindCallback
	KindTraitObject
	KindGenericParam
)

var kindNames = [...]string{
	KindPrimitive:    "primitive",
	KindOpaque:       "opaque",
	KindComplex:      "complex",
	KindString:       "string",
	KindStrSlice:     "str_slice",
	KindSlice:        "slice",
	KindArray:        "array",
	KindVec:          "vec",
	KindMap:          "map",
	KindResult:       "result",
	KindOption:       "option",
	KindTuple:        "tuple",
	KindBoxed:        "boxed",
	KindCallback:     "callback",
	KindTraitObject:  "trait_object",
	KindGenericParam: "generic_param",
}

func (k ConversionKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Conversion is the pair of conversion expressions between a native type
// and its FFI representation, plus the expression that frees the FFI value.
// Expressions are templates over the converted value.
type Conversion struct {
	Kind ConversionKind
	// Native is the native type expression.
	Native string
	// FFI is the type stored in mirror fields and passed across the boundary.
	FFI string
	// Pointer is set when FFI is a nullable pointer.
	Pointer bool
	// Borrow is "&" or "&mut " for reference arguments; the native value is
	// built from FFI and borrowed at the call site.
	Borrow string
	// Mirror is the path of the mirror type implementing FFIConversion, if any.
	Mirror string

	from func(string) string
	to   func(string) string
	drop func(string) string
	// unboxes marks a drop that is exactly runtime::unbox_any.
	unboxes bool
	// noTo marks a to-FFI direction that exists only inside mirrors and
	// cannot hand a usable value to foreign code (closures).
	noTo bool
	// inPlace marks opaque pointers that are borrowed without a copy.
	inPlace bool
}

// From returns the expression reading FFI value e into an owned native value.
func (c *Conversion) From(e string) string {
	if c.from == nil {
		return fmt.Sprintf("unreachable!(\"%s cannot be read back from foreign code\")", c.Native)
	}
	return c.from(e)
}

// CanFrom reports whether foreign values of this type can cross into native code.
func (c *Conversion) CanFrom() bool { return c.from != nil }

// To returns the expression converting native value e into an FFI value.
func (c *Conversion) To(e string) string {
	if c.to == nil {
		return fmt.Sprintf("unreachable!(\"%s has no FFI representation\")", c.Native)
	}
	return c.to(e)
}

// CanTo reports whether native values of this type can cross into foreign code.
func (c *Conversion) CanTo() bool { return c.to != nil && !c.noTo }

// Drop returns the statement freeing FFI value e, or "" when nothing is owned.
func (c *Conversion) Drop(e string) string {
	if c.drop == nil {
		return ""
	}
	return c.drop(e)
}

// Owns reports whether the to-FFI direction allocates, i.e. whether the
// FFI value must be freed by its consumer.
func (c *Conversion) Owns() bool { return c.drop != nil }

// WriteBack reports whether a mutable borrow must be written back into
// the caller's mirror after the native call.
func (c *Conversion) WriteBack() bool {
	return c.Borrow == "&mut " && c.Mirror != "" && c.Kind != KindCallback
}

// Arg returns the expression passing FFI value e to a native parameter.
func (c *Conversion) Arg(e string) string {
	if c.inPlace && c.Borrow != "" {
		return c.Borrow + "*" + e
	}
	return c.Borrow + c.From(e)
}

// Nullable returns the FFI type used where absence must be representable.
func (c *Conversion) Nullable() string {
	if c.Pointer {
		return c.FFI
	}
	return "*mut " + c.FFI
}

const cChar = "*mut std::os::raw::c_char"

func nullPointer(ffi string) string {
	if strings.HasPrefix(strings.TrimSpace(ffi), "*const") {
		return "std::ptr::null()"
	}
	return "std::ptr::null_mut()"
}

func identity(e string) string { return e }

func primitiveConversion(native string) *Conversion {
	return &Conversion{Kind: KindPrimitive, Native: native, FFI: native, from: identity, to: identity}
}

func stringConversion() *Conversion {
	return &Conversion{
		Kind:    KindString,
		Native:  "String",
		FFI:     cChar,
		Pointer: true,
		from:    func(e string) string { return "runtime::string_from_ffi(" + e + ")" },
		to:      func(e string) string { return "runtime::string_to_ffi(" + e + ")" },
		drop:    func(e string) string { return "runtime::unbox_string(" + e + ")" },
	}
}

func charConversion() *Conversion {
	c := stringConversion()
	c.Native = "char"
	c.from = func(e string) string { return "runtime::char_from_ffi(" + e + ")" }
	c.to = func(e string) string { return "runtime::char_to_ffi(" + e + ")" }
	return c
}

func strSliceConversion() *Conversion {
	c := stringConversion()
	c.Kind = KindStrSlice
	c.Native = "&str"
	c.Borrow = "&"
	c.to = func(e string) string { return "runtime::string_to_ffi(" + e + ".to_owned())" }
	return c
}

func unboxAny(e string) string { return "runtime::unbox_any(" + e + ")" }

// mirrorConversion converts through a mirror type's FFIConversion impl.
func mirrorConversion(kind ConversionKind, mirror, native string) *Conversion {
	via := fmt.Sprintf("<%s as runtime::FFIConversion<%s>>", mirror, native)
	return &Conversion{
		Kind:    kind,
		Native:  native,
		FFI:     "*mut " + mirror,
		Pointer: true,
		Mirror:  mirror,
		from:    func(e string) string { return via + "::ffi_from(" + e + ")" },
		to:      func(e string) string { return via + "::ffi_to(" + e + ")" },
		drop:    unboxAny,
		unboxes: true,
	}
}

// opaqueConversion passes a pointer to the native value itself.
func opaqueConversion(native string) *Conversion {
	return &Conversion{
		Kind:    KindOpaque,
		Native:  native,
		FFI:     "*mut " + native,
		Pointer: true,
		from:    func(e string) string { return "(*" + e + ").clone()" },
		to:      func(e string) string { return "runtime::boxed(" + e + ")" },
		drop:    unboxAny,
		unboxes: true,
		inPlace: true,
	}
}

func fill(tmpl, e string) string {
	return strings.ReplaceAll(tmpl, "{}", e)
}

// customConversion applies a configured conversion. Borrowed entries never
// free the FFI value.
func customConversion(native string, cc config.CustomConversion) *Conversion {
	c := &Conversion{
		Kind:    KindOpaque,
		Native:  native,
		FFI:     cc.FFIType,
		Pointer: strings.HasPrefix(strings.TrimSpace(cc.FFIType), "*"),
		from:    func(e string) string { return fill(cc.From, e) },
		to:      func(e string) string { return fill(cc.To, e) },
	}
	if cc.Owned() {
		switch {
		case cc.Drop != "":
			c.drop = func(e string) string { return fill(cc.Drop, e) }
		case c.Pointer:
			c.drop = unboxAny
			c.unboxes = true
		}
	}
	return c
}

// sentinelConversion flattens Option<integer> into the integer with 0 as None.
func sentinelConversion(inner *Conversion) *Conversion {
	return &Conversion{
		Kind:   KindOption,
		Native: "Option<" + inner.Native + ">",
		FFI:    inner.FFI,
		from:   func(e string) string { return "(" + e + " != 0).then_some(" + e + ")" },
		to:     func(e string) string { return e + ".unwrap_or(0)" },
	}
}

// optionalConversion encodes Option<T> as a nullable pointer. Pointer-typed
// FFI values are reused as is; value types are boxed.
func optionalConversion(inner *Conversion) *Conversion {
	c := &Conversion{
		Kind:    KindOption,
		Native:  "Option<" + inner.Native + ">",
		FFI:     inner.Nullable(),
		Pointer: true,
	}
	if inner.Pointer {
		c.from = func(e string) string {
			return fmt.Sprintf("(!%s.is_null()).then(|| %s)", e, inner.From(e))
		}
		if inner.to != nil {
			c.to = func(e string) string {
				return fmt.Sprintf("match %s { Some(v) => %s, None => %s }", e, inner.To("v"), nullPointer(inner.FFI))
			}
			c.noTo = inner.noTo
		}
		switch {
		case inner.unboxes:
			c.drop = func(e string) string { return "runtime::unbox_any_opt(" + e + ")" }
		case inner.Owns():
			c.drop = func(e string) string {
				return fmt.Sprintf("if !%s.is_null() { %s; }", e, inner.Drop(e))
			}
		}
		return c
	}
	c.from = func(e string) string {
		return fmt.Sprintf("(!%s.is_null()).then(|| %s)", e, inner.From("(*"+e+")"))
	}
	if inner.to != nil {
		c.to = func(e string) string {
			return fmt.Sprintf("match %s { Some(v) => runtime::boxed(%s), None => std::ptr::null_mut() }", e, inner.To("v"))
		}
		c.noTo = inner.noTo
	}
	if inner.Owns() {
		c.drop = func(e string) string {
			return fmt.Sprintf("if !%s.is_null() { %s; runtime::unbox_any(%s); }", e, inner.Drop("(*"+e+")"), e)
		}
	} else {
		c.drop = func(e string) string { return "runtime::unbox_any_opt(" + e + ")" }
	}
	return c
}

// boxedConversion wraps inner for Box<T>, Arc<T> and Rc<T>. Shared pointers
// are cloned on the way out.
func boxedConversion(inner *Conversion, wrapper, native string) *Conversion {
	c := *inner
	c.Kind = KindBoxed
	c.Native = native
	c.from = func(e string) string { return wrapper + "::new(" + inner.From(e) + ")" }
	c.inPlace = false
	if inner.to != nil {
		if wrapper == "Box" {
			c.to = func(e string) string { return inner.To("(*" + e + ")") }
		} else {
			c.to = func(e string) string { return inner.To("(*" + e + ").clone()") }
		}
	}
	return &c
}

// borrowedConversion wraps inner for a reference argument or return.
// The native value is rebuilt from FFI and borrowed; values leaving
// native code are cloned into owned ones.
func borrowedConversion(inner *Conversion, mut bool, native string) *Conversion {
	c := *inner
	c.Native = native
	c.Borrow = "&"
	if mut {
		c.Borrow = "&mut "
	}
	if inner.to != nil {
		c.to = func(e string) string { return inner.To(e + ".to_owned()") }
	}
	return &c
}

// rawPointerConversion passes raw pointers through untouched.
func rawPointerConversion(native string) *Conversion {
	c := primitiveConversion(native)
	c.Pointer = true
	return c
}

// stmt terminates a drop expression.
func stmt(s string) string {
	if s == "" || strings.HasSuffix(s, ";") || strings.HasSuffix(s, "}") {
		return s
	}
	return s + ";"
}
