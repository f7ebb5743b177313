package normalize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"remedia/internal/normalize"
)

func TestString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "ADAEZE", "adaeze"},
		{"trims", "  okafor  ", "okafor"},
		{"collapses internal runs", "mary   jane\tsmith", "mary jane smith"},
		{"empty stays empty", "", ""},
		{"whitespace only", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize.String(tt.in))
		})
	}
}

func TestGender(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"M", "male"},
		{"male", "male"},
		{" MALE ", "male"},
		{"f", "female"},
		{"Female", "female"},
		{"other", "other"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize.Gender(tt.in))
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"slash day first", "12/05/1969", "1969-05-12"},
		{"slash single digits", "3/7/2001", "2001-07-03"},
		{"month name", "12-May-1969", "1969-05-12"},
		{"month name case insensitive", "01-JAN-1990", "1990-01-01"},
		{"iso", "1969-05-12", "1969-05-12"},
		{"iso short fragments", "1969-5-2", "1969-05-02"},
		{"iso slashes", "1969/05/12", "1969-05-12"},
		{"surrounding space", " 12/05/1969 ", "1969-05-12"},
		{"unknown month name", "12-Mei-1969", ""},
		{"garbage", "not a date", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize.ParseDate(tt.in))
		})
	}
}

func TestParseDate_EquivalentFormsAgree(t *testing.T) {
	forms := []string{"12/05/1969", "12-May-1969", "1969-05-12", "1969/05/12"}
	for _, f := range forms {
		assert.Equal(t, "1969-05-12", normalize.ParseDate(f), f)
	}
}

func TestPhone(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips punctuation", "0801-234-5678", "08012345678"},
		{"country code to local", "2348012345678", "08012345678"},
		{"plus prefix", "+234 801 234 5678", "08012345678"},
		{"already local", "08012345678", "08012345678"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize.Phone(tt.in))
		})
	}
}

func TestCompanyName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"abbreviates limited", "Acme Holdings Limited", "acme holdings ltd"},
		{"public limited company stays plc", "First Bank Public Limited Company", "first bank plc"},
		{"private limited company", "Zenith Private Limited Company", "zenith ltd"},
		{"limited liability company", "Delta Limited Liability Company", "delta llc"},
		{"incorporated", "Omega Incorporated", "omega inc"},
		{"strips trailing punctuation", "Acme Ltd.", "acme ltd"},
		{"already short", "ACME LTD", "acme ltd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize.CompanyName(tt.in))
		})
	}
}

func TestRCNumber(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips RC dash prefix", "RC-123456", "123456"},
		{"strips RC slash prefix", "rc/123456", "123456"},
		{"strips RC with space", "RC 123456", "123456"},
		{"plain number untouched", "123456", "123456"},
		{"uppercases and strips separators", "bn-098-765", "BN098765"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize.RCNumber(tt.in))
		})
	}
}
