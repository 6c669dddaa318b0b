// Package reflectx provides the reflection helpers used by the tool
// machinery: function detection, name extraction, and signature probing.
package reflectx

import (
	"reflect"
	"runtime"
	"strings"
)

// IsFunction reports whether fn is a function value.
func IsFunction(fn any) bool {
	if fn == nil {
		return false
	}
	return reflect.TypeOf(fn).Kind() == reflect.Func
}

// FunctionName extracts a short name for the provided function value.
// Named function types use the type name; methods and top-level functions
// use the runtime symbol with the package path and the -fm method suffix
// stripped. Anonymous functions fall back to the type signature.
func FunctionName(fn any) string {
	if !IsFunction(fn) {
		return ""
	}

	val := reflect.ValueOf(fn)
	typ := val.Type()

	if typ.Name() != "" {
		return typ.String()
	}

	if rf := runtime.FuncForPC(val.Pointer()); rf != nil {
		name := rf.Name()
		if lastDot := strings.LastIndex(name, "."); lastDot >= 0 {
			name = strings.TrimSuffix(name[lastDot+1:], "-fm")
		}
		return name
	}
	return typ.String()
}

// IsRefinedType reports whether value is exactly the type R. The executor
// uses this to recognize runtime-context parameters in tool signatures so
// they are injected rather than filled from model-provided arguments.
func IsRefinedType[R any](value reflect.Type) bool {
	var toMatch R
	return reflect.TypeOf(toMatch) == value
}

// ResultImplements reports whether any result of the function implements
// the interface type T. function may be a func value or a reflect.Type.
func ResultImplements[T any](function any) bool {
	if function == nil {
		return false
	}

	var fnType reflect.Type
	switch v := function.(type) {
	case reflect.Type:
		fnType = v
	default:
		fnType = reflect.TypeOf(function)
	}
	if fnType.Kind() != reflect.Func {
		return false
	}

	ifaceType := reflect.TypeOf((*T)(nil)).Elem()
	for i := 0; i < fnType.NumOut(); i++ {
		if fnType.Out(i).Implements(ifaceType) {
			return true
		}
	}
	return false
}

// IsZero reports whether v is nil or the zero value for its type.
func IsZero(v any) bool {
	if v == nil {
		return true
	}

	val := reflect.ValueOf(v)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		if val.IsNil() {
			return true
		}
	default:
	}
	return val.IsZero()
}
