// Package schema is the single source of truth for canonical profile field
// names, their validation rules and the legacy shapes that map onto them.
package schema

import "sort"

// Canonical top-level fields.
const (
	FieldName           = "name"
	FieldEmail          = "email"
	FieldMobile         = "mobile"
	FieldJobRole        = "jobRole"
	FieldGender         = "gender"
	FieldDOB            = "dob"
	FieldAadhaar        = "aadhaar"
	FieldPAN            = "pan"
	FieldAddress        = "address"
	FieldAbout          = "about"
	FieldExperience     = "experience"
	FieldEmploymentType = "employmentType"
	FieldOccupation     = "occupation"
	FieldJobRequirement = "jobRequirement"
	FieldHeardAbout     = "heardAbout"
	FieldInterestType   = "interestType"
	FieldBank           = "bank"

	FieldProfileImage   = "profileImage"
	FieldAadhaarFile    = "aadhaarFile"
	FieldAadhaarFront   = "aadhaarFront"
	FieldAadhaarBack    = "aadhaarBack"
	FieldPANFile        = "panFile"
	FieldPANCardUpload  = "panCardUpload"
	FieldResume         = "resume"
	FieldResumeStep2    = "resumeStep2"
	FieldPassbookUpload = "passbookUpload"
)

// Storage buckets for uploaded documents.
const (
	BucketProfileImages    = "profile_images"
	BucketAadhaarDocuments = "aadhaar_documents"
	BucketPANDocuments     = "pan_documents"
	BucketResumes          = "resumes"
	BucketBankDocuments    = "bank_documents"
)

// RequiredFields must all be present before a profile can be finalized.
// Order is the order missing fields are reported in.
var RequiredFields = []string{FieldName, FieldEmail, FieldMobile, FieldAadhaar, FieldPAN}

// objectFields are the structured fields and the sub-keys they accept.
var objectFields = map[string][]string{
	FieldAddress:    {"address1", "address2", "city", "state", "country", "pincode"},
	FieldExperience: {"years", "months"},
	FieldBank:       {"bankName", "accountNumber", "ifscCode"},
}

// documentBuckets maps every document field to the bucket its file lives in.
var documentBuckets = map[string]string{
	FieldProfileImage:   BucketProfileImages,
	FieldAadhaarFile:    BucketAadhaarDocuments,
	FieldAadhaarFront:   BucketAadhaarDocuments,
	FieldAadhaarBack:    BucketAadhaarDocuments,
	FieldPANFile:        BucketPANDocuments,
	FieldPANCardUpload:  BucketPANDocuments,
	FieldResume:         BucketResumes,
	FieldResumeStep2:    BucketResumes,
	FieldPassbookUpload: BucketBankDocuments,
}

// IsObjectField reports whether field is a structured one-level sub-object.
func IsObjectField(field string) bool {
	_, ok := objectFields[field]
	return ok
}

// IsDocumentField reports whether field holds the URL of an uploaded file.
func IsDocumentField(field string) bool {
	_, ok := documentBuckets[field]
	return ok
}

// DocumentBucket returns the bucket for a document field. Both the canonical
// name and the legacy form input name are accepted.
func DocumentBucket(field string) (canonical, bucket string, ok bool) {
	if p, isAlias := flatAliases[field]; isAlias && p.sub == "" {
		field = p.key
	}
	bucket, ok = documentBuckets[field]
	return field, bucket, ok
}

// Buckets lists every bucket a document can be stored in.
func Buckets() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, b := range documentBuckets {
		if _, dup := seen[b]; dup {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}
