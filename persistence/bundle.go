// Package persistence implements the bundling and checkpoint-storage
// layer: the neutral JSON-tree representation a savable object is turned
// into (Bundle), the registry that maps type names back to constructors
// (the saver registry), and the Persister contract with its in-memory,
// on-disk, and SQL-backed implementations.
package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// MetaClassName is the reserved meta-key recording the loader identifier
// for the bundle's owning type.
const MetaClassName = "class_name"

// MetaObjectLoader is the reserved meta-key optionally recording an
// alternate loader identifier, when the owning type cannot be identified
// purely from its registered class name (e.g. a dynamically parametrized
// process body).
const MetaObjectLoader = "object_loader"

// FieldTagMethod marks a field whose stored value is a method reference:
// the name of a bound method of the owning savable, recorded as
// "member_name" rather than a deep-copied value. Methods of any object
// other than self are refused at save time.
const FieldTagMethod = "method"

// FieldTagSavable marks a field whose stored value is itself a nested
// bundle (a recursively-saved savable).
const FieldTagSavable = "savable"

// FieldTagValue marks a field whose stored value is a deep-copied plain
// value (the default when no tag is recorded).
const FieldTagValue = "value"

// metaKey is the reserved top-level key under which a bundle's type tags
// are recorded, mirroring the wire format's "!!meta" key (Bundle wire
// format): {class_name, object_loader?, types?}.
const metaKey = "!!meta"

// Bundle is the in-memory neutral representation of a checkpoint: an
// ordered key/value tree plus type tags, self-describing enough that
// unbundle(bundle) with an appropriate loader reproduces an equivalent
// object with no external lookups other than through the loader.
//
// Internally a Bundle is a JSON document. gjson/sjson give path-addressed
// get/set without requiring callers to unmarshal into a concrete Go type,
// which matters because a bundle's shape is only known once its
// class_name has been resolved by the saver registry.
type Bundle struct {
	raw string // JSON document; "{}" for an empty bundle
}

// NewBundle returns an empty bundle tagged with the given loader
// identifier.
func NewBundle(className string) *Bundle {
	b := &Bundle{raw: "{}"}
	b.setMeta(MetaClassName, className)
	return b
}

// ParseBundle parses a previously-serialized bundle from its wire JSON
// form.
func ParseBundle(data []byte) (*Bundle, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("persistence: invalid bundle JSON")
	}
	return &Bundle{raw: string(data)}, nil
}

// Bytes renders the bundle to its wire JSON form.
func (b *Bundle) Bytes() []byte {
	return []byte(b.raw)
}

// Pretty renders the bundle as indented JSON, used by the CLI inspector.
func (b *Bundle) Pretty() []byte {
	return pretty.Pretty([]byte(b.raw))
}

// ClassName returns the loader identifier recorded at bundle creation.
func (b *Bundle) ClassName() string {
	return b.getMeta(MetaClassName)
}

// ObjectLoader returns the optional alternate loader identifier, or ""
// if none was recorded.
func (b *Bundle) ObjectLoader() string {
	return b.getMeta(MetaObjectLoader)
}

// SetObjectLoader records an alternate loader identifier.
func (b *Bundle) SetObjectLoader(id string) {
	b.setMeta(MetaObjectLoader, id)
}

func (b *Bundle) getMeta(key string) string {
	return gjson.Get(b.raw, metaKey+"."+key).String()
}

func (b *Bundle) setMeta(key, value string) {
	b.set(metaKey+"."+key, value)
}

func (b *Bundle) set(path string, value any) {
	out, err := sjson.Set(b.raw, path, value)
	if err != nil {
		// sjson only fails on malformed paths, which are all
		// compile-time constants in this package; a failure here is a
		// programming error, not a runtime condition callers can react
		// to, so it is folded into a permissive no-op rather than
		// propagated through every setter's signature.
		return
	}
	b.raw = out
}

// SetField records a plain, deep-copied value under name, tagging it
// FieldTagValue in the type map.
func (b *Bundle) SetField(name string, value any) {
	b.set("fields."+name, value)
	b.setFieldTag(name, FieldTagValue)
}

// SetMethodField records a bound-method reference: memberName must name
// a method of the owning savable itself (methods of other objects MUST
// be refused by callers before reaching this point).
func (b *Bundle) SetMethodField(name, memberName string) {
	b.set("fields."+name, memberName)
	b.setFieldTag(name, FieldTagMethod)
}

// SetSavableField records a nested bundle under name, tagging it
// FieldTagSavable.
func (b *Bundle) SetSavableField(name string, nested *Bundle) {
	merged, err := sjson.SetRaw(b.raw, "fields."+name, nested.raw)
	if err == nil {
		b.raw = merged
	}
	b.setFieldTag(name, FieldTagSavable)
}

func (b *Bundle) setFieldTag(name, tag string) {
	b.set(metaKey+".types."+name, tag)
}

// FieldTag returns the recorded type tag for name, or FieldTagValue if
// the field was never explicitly tagged.
func (b *Bundle) FieldTag(name string) string {
	v := gjson.Get(b.raw, metaKey+".types."+name)
	if !v.Exists() {
		return FieldTagValue
	}
	return v.String()
}

// Field returns the raw gjson.Result for a plain or method-reference
// field. Use NestedBundle for FieldTagSavable fields instead.
func (b *Bundle) Field(name string) gjson.Result {
	return gjson.Get(b.raw, "fields."+name)
}

// NestedBundle extracts a FieldTagSavable field as its own Bundle.
func (b *Bundle) NestedBundle(name string) (*Bundle, bool) {
	v := gjson.Get(b.raw, "fields."+name)
	if !v.Exists() {
		return nil, false
	}
	return &Bundle{raw: v.Raw}, true
}

// UnmarshalField decodes a plain field's JSON into dst via
// encoding/json, for fields whose shape is a concrete Go struct rather
// than something gjson can address directly.
func (b *Bundle) UnmarshalField(name string, dst any) error {
	v := b.Field(name)
	if !v.Exists() {
		return fmt.Errorf("persistence: field %q not present in bundle", name)
	}
	return json.Unmarshal([]byte(v.Raw), dst)
}
