package compare

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Names of the user-editable fields, as they appear on the wire.
const (
	FieldProteinPercent = "proteinPercent"
	FieldFatPercent     = "fatPercent"
	FieldKcalPer100g    = "kcalPer100g"
	FieldPrice          = "price"
	FieldWeightKg       = "weightKg"
)

// EditableFields lists the editable fields in display order.
var EditableFields = []string{
	FieldProteinPercent,
	FieldFatPercent,
	FieldKcalPer100g,
	FieldPrice,
	FieldWeightKg,
}

// Patch is a parsed partial update. Nil fields are left untouched.
type Patch struct {
	ProteinPercent *float64 `json:"proteinPercent,omitempty"`
	FatPercent     *float64 `json:"fatPercent,omitempty"`
	KcalPer100g    *float64 `json:"kcalPer100g,omitempty"`
	Price          *float64 `json:"price,omitempty"`
	WeightKg       *float64 `json:"weightKg,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.ProteinPercent == nil && p.FatPercent == nil && p.KcalPer100g == nil && p.Price == nil && p.WeightKg == nil
}

// RawField holds a field exactly as the client sent it. It accepts JSON
// numbers, strings and null so that form input can be forwarded untouched.
type RawField struct {
	Raw     string
	Present bool
}

func (f *RawField) UnmarshalJSON(b []byte) error {
	f.Present = true
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		f.Raw = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &f.Raw)
	}
	f.Raw = string(b)
	return nil
}

// PatchRequest is the body of a partial update.
type PatchRequest struct {
	ProteinPercent RawField `json:"proteinPercent"`
	FatPercent     RawField `json:"fatPercent"`
	KcalPer100g    RawField `json:"kcalPer100g"`
	Price          RawField `json:"price"`
	WeightKg       RawField `json:"weightKg"`
}

// Parse validates the request into a Patch.
func (r PatchRequest) Parse() (Patch, error) {
	fields := map[string]string{}
	for name, f := range map[string]RawField{
		FieldProteinPercent: r.ProteinPercent,
		FieldFatPercent:     r.FatPercent,
		FieldKcalPer100g:    r.KcalPer100g,
		FieldPrice:          r.Price,
		FieldWeightKg:       r.WeightKg,
	} {
		if f.Present {
			fields[name] = f.Raw
		}
	}
	return ParseFields(fields)
}

// ParseFields builds a Patch from raw form values keyed by field name.
// Blank values mean "not provided" and leave the stored value unchanged.
// Fields are checked in display order so the first bad field is reported.
func ParseFields(fields map[string]string) (Patch, error) {
	var p Patch
	for _, name := range EditableFields {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		v, err := parseField(name, raw)
		if err != nil {
			return Patch{}, err
		}
		if v == nil {
			continue
		}
		switch name {
		case FieldProteinPercent:
			p.ProteinPercent = v
		case FieldFatPercent:
			p.FatPercent = v
		case FieldKcalPer100g:
			p.KcalPer100g = v
		case FieldPrice:
			p.Price = v
		case FieldWeightKg:
			p.WeightKg = v
		}
	}
	for name := range fields {
		if !IsEditable(name) {
			return Patch{}, &ValidationError{Field: name, Reason: "unknown field"}
		}
	}
	return p, nil
}

func parseField(name, raw string) (*float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, &ValidationError{Field: name, Value: raw, Reason: "must be a number"}
	}
	switch name {
	case FieldProteinPercent, FieldFatPercent:
		if v < 0 || v > 100 {
			return nil, &ValidationError{Field: name, Value: raw, Reason: "must be between 0 and 100"}
		}
	case FieldKcalPer100g, FieldWeightKg:
		if v <= 0 {
			return nil, &ValidationError{Field: name, Value: raw, Reason: "must be greater than 0"}
		}
	case FieldPrice:
		if v < 0 {
			return nil, &ValidationError{Field: name, Value: raw, Reason: "must be >= 0"}
		}
	}
	return &v, nil
}

// IsEditable reports whether name is one of EditableFields.
func IsEditable(name string) bool {
	for _, f := range EditableFields {
		if f == name {
			return true
		}
	}
	return false
}
