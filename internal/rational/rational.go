// Package rational normalizes the numeric encodings EXIF values come in
// (fractions, (num, den) pairs, plain numbers and numeric strings) into
// float64.
package rational

import (
	"math/big"
	"reflect"
	"strconv"
	"strings"

	exifcommon "github.com/dsoprea/go-exif/v3/common"
)

// Fraction is satisfied by rational types that expose their parts.
type Fraction interface {
	Numerator() int64
	Denominator() int64
}

// ToFloat converts value to float64 and returns 0 for anything it cannot
// interpret.
func ToFloat(value any) float64 {
	f, _ := Parse(value)
	return f
}

// Parse converts value to float64. ok is false when value is not
// recoverable as a number. A zero denominator yields (0, true).
func Parse(value any) (f float64, ok bool) {
	if value == nil {
		return 0, false
	}
	if f, ok, matched := fraction(value); matched {
		return f, ok
	}
	if f, ok := scalar(value); ok {
		return f, true
	}
	if items, isSeq := Elements(value); isSeq {
		switch len(items) {
		case 1:
			return Parse(items[0])
		case 2:
			num, okNum := Parse(items[0])
			den, okDen := Parse(items[1])
			if !okNum || !okDen {
				return 0, false
			}
			return ratio(num, den), true
		}
	}
	return 0, false
}

// Elements returns the items of a slice or array value. Byte slices are not
// treated as sequences.
func Elements(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}
	if _, isBytes := value.([]byte); isBytes {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

func fraction(value any) (f float64, ok bool, matched bool) {
	switch v := value.(type) {
	case exifcommon.Rational:
		return ratio(float64(v.Numerator), float64(v.Denominator)), true, true
	case exifcommon.SignedRational:
		return ratio(float64(v.Numerator), float64(v.Denominator)), true, true
	case *big.Rat:
		if v == nil {
			return 0, false, true
		}
		f, _ := v.Float64()
		return f, true, true
	case Fraction:
		return ratio(float64(v.Numerator()), float64(v.Denominator())), true, true
	}
	return 0, false, false
}

func scalar(value any) (float64, bool) {
	switch v := value.(type) {
	case string:
		return parseString(v)
	case []byte:
		return parseString(string(v))
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Pointer:
		if rv.IsNil() {
			return 0, false
		}
		return Parse(rv.Elem().Interface())
	}
	return 0, false
}

func parseString(s string) (float64, bool) {
	s = strings.TrimSpace(strings.Trim(s, "\x00"))
	if s == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	// "1/250" as printed by EXIF formatters.
	num, den, found := strings.Cut(s, "/")
	if !found {
		return 0, false
	}
	n, errNum := strconv.ParseFloat(strings.TrimSpace(num), 64)
	d, errDen := strconv.ParseFloat(strings.TrimSpace(den), 64)
	if errNum != nil || errDen != nil {
		return 0, false
	}
	return ratio(n, d), true
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
