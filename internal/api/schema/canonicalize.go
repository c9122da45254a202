package schema

import (
	"sort"

	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

// path addresses a canonical leaf: a top-level key, or a sub-key of one of
// the structured fields when sub is set.
type path struct {
	key string
	sub string
}

// flatAliases are legacy top-level keys.
var flatAliases = map[string]path{
	"fullName":         {key: FieldName},
	"phoneNumber":      {key: FieldMobile},
	"phone":            {key: FieldMobile},
	"address1":         {key: FieldAddress, sub: "address1"},
	"address2":         {key: FieldAddress, sub: "address2"},
	"street":           {key: FieldAddress, sub: "address1"},
	"city":             {key: FieldAddress, sub: "city"},
	"state":            {key: FieldAddress, sub: "state"},
	"country":          {key: FieldAddress, sub: "country"},
	"pincode":          {key: FieldAddress, sub: "pincode"},
	"experienceYears":  {key: FieldExperience, sub: "years"},
	"experienceMonths": {key: FieldExperience, sub: "months"},
	"bankName":         {key: FieldBank, sub: "bankName"},
	"accountNumber":    {key: FieldBank, sub: "accountNumber"},
	"ifscCode":         {key: FieldBank, sub: "ifscCode"},
	"profile-image":    {key: FieldProfileImage},
	"aadhaar-file":     {key: FieldAadhaarFile},
	"pan-file":         {key: FieldPANFile},
	"resume-file":      {key: FieldResume},
}

// containerAliases are legacy nested objects whose sub-keys map onto
// canonical paths. Sub-keys not listed here stay under the container.
var containerAliases = map[string]map[string]path{
	"personalInfo": {
		"name":        {key: FieldName},
		"fullName":    {key: FieldName},
		"email":       {key: FieldEmail},
		"mobile":      {key: FieldMobile},
		"phoneNumber": {key: FieldMobile},
		"gender":      {key: FieldGender},
		"dob":         {key: FieldDOB},
		"jobRole":     {key: FieldJobRole},
	},
	"documents": {
		"aadhaar": {key: FieldAadhaar},
		"pan":     {key: FieldPAN},
	},
	"bankDetails": {
		"bankName":      {key: FieldBank, sub: "bankName"},
		"accountNumber": {key: FieldBank, sub: "accountNumber"},
		"ifscCode":      {key: FieldBank, sub: "ifscCode"},
	},
	"files": func() map[string]path {
		m := map[string]path{}
		for field := range documentBuckets {
			m[field] = path{key: field}
		}
		for alias, p := range flatAliases {
			if IsDocumentField(p.key) {
				m[alias] = p
			}
		}
		return m
	}(),
}

// subAliases rename legacy sub-keys inside canonical structured fields.
var subAliases = map[string]map[string]string{
	FieldAddress: {"street": "address1"},
}

type write struct {
	p     path
	value any
}

// Canonicalize rewrites every legacy alias in raw to its canonical path.
// Unknown keys pass through unchanged and null values are dropped. When raw
// carries both an alias and the canonical key for the same leaf, the
// canonical key wins. raw is never modified.
func Canonicalize(raw map[string]any) types.Document {
	var aliased, canonical []write

	for _, key := range sortedKeys(raw) {
		value := raw[key]
		if value == nil {
			continue
		}

		if subs, isContainer := containerAliases[key]; isContainer {
			obj, ok := value.(map[string]any)
			if !ok {
				canonical = append(canonical, write{p: path{key: key}, value: value})
				continue
			}
			for _, sk := range sortedKeys(obj) {
				sv := obj[sk]
				if sv == nil {
					continue
				}
				if target, known := subs[sk]; known {
					aliased = append(aliased, write{p: target, value: sv})
					continue
				}
				canonical = append(canonical, write{p: path{key: key, sub: sk}, value: sv})
			}
			continue
		}

		if target, isAlias := flatAliases[key]; isAlias {
			aliased = append(aliased, write{p: target, value: value})
			continue
		}

		if IsObjectField(key) {
			if obj, ok := value.(map[string]any); ok {
				renames := subAliases[key]
				for _, sk := range sortedKeys(obj) {
					sv := obj[sk]
					if sv == nil {
						continue
					}
					if to, renamed := renames[sk]; renamed {
						aliased = append(aliased, write{p: path{key: key, sub: to}, value: sv})
						continue
					}
					canonical = append(canonical, write{p: path{key: key, sub: sk}, value: sv})
				}
				continue
			}
		}

		canonical = append(canonical, write{p: path{key: key}, value: stripNulls(value)})
	}

	out := types.Document{}
	for _, w := range aliased {
		set(out, w)
	}
	for _, w := range canonical {
		set(out, w)
	}
	return out
}

func set(doc types.Document, w write) {
	if w.p.sub == "" {
		doc[w.p.key] = w.value
		return
	}
	obj, ok := doc[w.p.key].(map[string]any)
	if !ok {
		obj = map[string]any{}
		doc[w.p.key] = obj
	}
	obj[w.p.sub] = w.value
}

// stripNulls copies a pass-through object without its null members.
func stripNulls(v any) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(obj))
	for k, sv := range obj {
		if sv != nil {
			out[k] = sv
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
