package schema

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

var (
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	mobilePattern  = regexp.MustCompile(`^[0-9]{10}$`)
	aadhaarPattern = regexp.MustCompile(`^\d{12}$`)
	panPattern     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	pincodePattern = regexp.MustCompile(`^\d{6}$`)
	ifscPattern    = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
)

var (
	genders         = []string{"male", "female", "other"}
	employmentTypes = []string{"full-time", "part-time", "contract", "freelance"}
)

type rule func(value any) string

var rules = map[string]rule{
	FieldEmail:          patternRule(emailPattern, "must be a valid email address"),
	FieldMobile:         patternRule(mobilePattern, "must be exactly 10 digits"),
	FieldAadhaar:        patternRule(aadhaarPattern, "must be exactly 12 digits"),
	FieldPAN:            patternRule(panPattern, "must match the PAN format ABCDE1234F"),
	"address.pincode":   patternRule(pincodePattern, "must be exactly 6 digits"),
	"bank.ifscCode":     patternRule(ifscPattern, "must be a valid IFSC code"),
	FieldGender:         enumRule(genders),
	FieldEmploymentType: enumRule(employmentTypes),
	FieldDOB:            dateRule,
	"experience.years":  numberRule(0, math.MaxInt32),
	"experience.months": numberRule(0, 11),
}

// Validate checks a single canonical field. Nested fields use dotted paths
// such as "address.pincode". Absent or empty values are always valid; the
// returned string is empty when value is acceptable.
func Validate(field string, value any) string {
	if isEmpty(value) {
		return ""
	}
	if r, ok := rules[field]; ok {
		return r(value)
	}
	if IsDocumentField(field) {
		return urlRule(value)
	}
	return ""
}

// ValidateDocument checks every field of doc and reports all offending
// fields at once, or nil.
func ValidateDocument(doc types.Document) *types.ValidationError {
	var fields []types.FieldError
	for _, key := range sortedKeys(doc) {
		value := doc[key]
		if obj, ok := value.(map[string]any); ok && IsObjectField(key) {
			for _, sk := range sortedKeys(obj) {
				p := key + "." + sk
				if reason := Validate(p, obj[sk]); reason != "" {
					fields = append(fields, types.FieldError{Field: p, Reason: reason})
				}
			}
			continue
		}
		if IsObjectField(key) && !isEmpty(value) {
			fields = append(fields, types.FieldError{Field: key, Reason: "must be an object"})
			continue
		}
		if reason := Validate(key, value); reason != "" {
			fields = append(fields, types.FieldError{Field: key, Reason: reason})
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return &types.ValidationError{Fields: fields}
}

// MissingRequired lists the required fields absent from doc.
func MissingRequired(doc types.Document) []string {
	var missing []string
	for _, f := range RequiredFields {
		if isEmpty(doc[f]) {
			missing = append(missing, f)
		}
	}
	return missing
}

// Completion is the rounded percentage of required fields present in doc.
func Completion(doc types.Document) int {
	present := len(RequiredFields) - len(MissingRequired(doc))
	return int(math.Round(float64(present) / float64(len(RequiredFields)) * 100))
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	}
	return false
}

func patternRule(re *regexp.Regexp, reason string) rule {
	return func(value any) string {
		s, ok := value.(string)
		if !ok {
			return "must be a string"
		}
		if !re.MatchString(s) {
			return reason
		}
		return ""
	}
}

func enumRule(allowed []string) rule {
	return func(value any) string {
		s, ok := value.(string)
		if !ok {
			return "must be a string"
		}
		for _, a := range allowed {
			if s == a {
				return ""
			}
		}
		return "must be one of " + strings.Join(allowed, ", ")
	}
}

func dateRule(value any) string {
	s, ok := value.(string)
	if !ok {
		return "must be a date string"
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if _, err := time.Parse(layout, s); err == nil {
			return ""
		}
	}
	return "must be a date in YYYY-MM-DD format"
}

// numberRule accepts JSON numbers and numeric form values.
func numberRule(min, max int) rule {
	return func(value any) string {
		var n float64
		switch v := value.(type) {
		case float64:
			n = v
		case int:
			n = float64(v)
		case string:
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return "must be a number"
			}
			n = parsed
		default:
			return "must be a number"
		}
		if n != math.Trunc(n) {
			return "must be a whole number"
		}
		if n < float64(min) || n > float64(max) {
			return fmt.Sprintf("must be between %d and %d", min, max)
		}
		return ""
	}
}

func urlRule(value any) string {
	s, ok := value.(string)
	if !ok {
		return "must be a URL string"
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "must be an http(s) URL"
	}
	return ""
}
