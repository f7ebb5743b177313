// Package match compares provider-returned identity data against
// user-submitted data field by field. Comparison order is fixed so failed
// field lists are reproducible across runs.
package match

import "remedia/internal/normalize"

// Canonical field names, in comparison order.
const (
	FieldFirstName = "First Name"
	FieldLastName  = "Last Name"
	FieldGender    = "Gender"
	FieldDOB       = "Date of Birth"
	FieldPhone     = "Phone Number"

	FieldCompanyName   = "Company Name"
	FieldRCNumber      = "Registration Number"
	FieldRegDate       = "Registration Date"
	FieldCompanyStatus = "Company Status"
)

// statusNotCompared marks the company status detail: the registry's own
// status is validated, not compared against a submitted value.
const statusNotCompared = "N/A (validated against CAC)"

// FieldDetail records one field comparison for the audit trail.
type FieldDetail struct {
	APIValue       string `json:"apiValue"`
	SubmittedValue string `json:"submittedValue"`
	Matched        bool   `json:"matched"`
}

// Result is the outcome of comparing one provider record against one
// submitted record. Matched is true iff FailedFields is empty; phone
// mismatches appear only in Details.
type Result struct {
	Matched      bool                   `json:"matched"`
	FailedFields []string               `json:"failedFields"`
	Details      map[string]FieldDetail `json:"details"`
}

type kind int

const (
	kindName kind = iota
	kindGender
	kindDate
	kindPhone
	kindCompanyName
	kindRCNumber
	kindStatus
)

type fieldSpec struct {
	name     string
	kind     kind
	required bool
	aliases  []string
}

// Alias tables tolerate the key spellings seen across upstream spreadsheets
// and provider payloads. First non-empty hit wins.
var fields = []fieldSpec{
	{
		name: FieldFirstName, kind: kindName, required: true,
		aliases: []string{"firstName", "First Name", "first name", "firstname", "first_name", "FirstName"},
	},
	{
		name: FieldLastName, kind: kindName, required: true,
		aliases: []string{"lastName", "Last Name", "last name", "lastname", "last_name", "surname", "Surname", "LastName"},
	},
	{
		name: FieldGender, kind: kindGender, required: true,
		aliases: []string{"gender", "Gender", "sex", "Sex"},
	},
	{
		name: FieldDOB, kind: kindDate, required: true,
		aliases: []string{"dateOfBirth", "Date of Birth", "date of birth", "dob", "DOB", "birthdate", "birthDate", "Birth Date"},
	},
	{
		name: FieldPhone, kind: kindPhone, required: false,
		aliases: []string{"phoneNumber", "Phone Number", "phone number", "phone", "Phone", "telephoneno", "telephoneNo", "msisdn"},
	},
}

// companyFields is the CAC registry field set. The registry payload uses
// plain "name"; submitted spreadsheets spell the RC number a dozen ways.
var companyFields = []fieldSpec{
	{
		name: FieldCompanyName, kind: kindCompanyName, required: true,
		aliases: []string{"companyName", "Company Name", "company name", "name", "Name"},
	},
	{
		name: FieldRCNumber, kind: kindRCNumber, required: true,
		aliases: []string{"registrationNumber", "Registration Number", "registration number", "rcNumber", "RC Number", "rc number", "cac", "CAC"},
	},
	{
		name: FieldRegDate, kind: kindDate, required: true,
		aliases: []string{"registrationDate", "Registration Date", "registration date"},
	},
	{
		name: FieldCompanyStatus, kind: kindStatus, required: true,
		aliases: []string{"companyStatus", "Company Status", "company status", "status", "Status"},
	},
}

// Lookup resolves a logical field against a heterogeneous record, trying each
// known key spelling in order.
func Lookup(record map[string]string, canonical string) string {
	for _, table := range [][]fieldSpec{fields, companyFields} {
		for _, f := range table {
			if f.name != canonical {
				continue
			}
			for _, alias := range f.aliases {
				if v := record[alias]; v != "" {
					return v
				}
			}
			return ""
		}
	}
	return ""
}

// Compare checks the five canonical fields. Names, gender and phone match on
// normalized equality, absent-on-both-sides included. Date of birth is
// stricter: both sides must parse, so an unparseable date fails the field
// even when the raw strings are equal.
func Compare(apiData, submittedData map[string]string) Result {
	res := Result{
		FailedFields: []string{},
		Details:      make(map[string]FieldDetail, len(fields)),
	}

	for _, f := range fields {
		apiRaw := Lookup(apiData, f.name)
		subRaw := Lookup(submittedData, f.name)

		var matched bool
		switch f.kind {
		case kindName:
			matched = normalize.String(apiRaw) == normalize.String(subRaw)
		case kindGender:
			matched = normalize.Gender(apiRaw) == normalize.Gender(subRaw)
		case kindDate:
			a, s := normalize.ParseDate(apiRaw), normalize.ParseDate(subRaw)
			matched = a != "" && s != "" && a == s
		case kindPhone:
			matched = normalize.Phone(apiRaw) == normalize.Phone(subRaw)
		}

		res.Details[f.name] = FieldDetail{
			APIValue:       apiRaw,
			SubmittedValue: subRaw,
			Matched:        matched,
		}
		if !matched && f.required {
			res.FailedFields = append(res.FailedFields, f.name)
		}
	}

	res.Matched = len(res.FailedFields) == 0
	return res
}

// CompareCompany checks the CAC registry field set. Registration date follows
// the same both-sides-must-parse rule as date of birth. Company status is not
// a comparison: the registry's own status must be verified or active.
func CompareCompany(apiData, submittedData map[string]string) Result {
	res := Result{
		FailedFields: []string{},
		Details:      make(map[string]FieldDetail, len(companyFields)),
	}

	for _, f := range companyFields {
		apiRaw := Lookup(apiData, f.name)
		subRaw := Lookup(submittedData, f.name)

		var matched bool
		switch f.kind {
		case kindCompanyName:
			matched = normalize.CompanyName(apiRaw) == normalize.CompanyName(subRaw)
		case kindRCNumber:
			matched = normalize.RCNumber(apiRaw) == normalize.RCNumber(subRaw)
		case kindDate:
			a, s := normalize.ParseDate(apiRaw), normalize.ParseDate(subRaw)
			matched = a != "" && s != "" && a == s
		case kindStatus:
			status := normalize.String(apiRaw)
			matched = status == "verified" || status == "active"
			subRaw = statusNotCompared
		}

		res.Details[f.name] = FieldDetail{
			APIValue:       apiRaw,
			SubmittedValue: subRaw,
			Matched:        matched,
		}
		if !matched && f.required {
			res.FailedFields = append(res.FailedFields, f.name)
		}
	}

	res.Matched = len(res.FailedFields) == 0
	return res
}
