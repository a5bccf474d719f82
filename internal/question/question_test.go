package question

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestContainsDateRange(t *testing.T) {
	tests := []struct {
		q    string
		want bool
	}{
		{"Can you schedule a meeting from 3 March to 4 March 2024?", true},
		{"Please book the venue between 06/07/2024 and 10/07/2024.", true},
		{"I need the report from March 3 to March 4.", true},
		{"What are the available dates between 2024-08-15 and 2024-08-18?", true},
		{"We have meetings from 15082024 to 18082024.", true},
		{"Arrange the interview from June 15 to June 20, 2024.", true},
		{"Check availability between 15th July 2024 and 20th July 2024.", true},
		{"Is there any event between 20231205 and 20231208?", true},
		{"Let's block dates from 06-12-2024  -  10-12-2024.", true},
		{"Does this include dates from 3rd March to 4th March?", true},
		{"Is there anything between April 1 and April 2?", true},
		{"Can you schedule a meeting from   3 March    to     4 March 2024?", true},
		{"Total sales by region", false},
		{"Sales from March onwards", false},
		{"between 5 and 10 units", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ContainsDateRange(tt.q); got != tt.want {
			t.Errorf("ContainsDateRange(%q) = %v, want %v", tt.q, got, tt.want)
		}
	}
}

func TestSuggest(t *testing.T) {
	columns := []string{"CompanyName", "EmployeeCount", "Revenue", "Industry", "FoundedYear"}
	values := map[string][]string{
		"CompanyName": {"Apple", "Google", "Microsoft"},
		"Industry":    {"Tech", "Finance", "Healthcare"},
		"FoundedYear": {"1976", "1998", "1975"},
	}
	tests := []struct {
		prefix string
		want   []string
	}{
		{"co", []string{"CompanyName", "CompanyName: Apple", "CompanyName: Google", "CompanyName: Microsoft"}},
		{"in", []string{"Industry", "Industry: Tech", "Industry: Finance", "Industry: Healthcare"}},
		{"f", []string{"FoundedYear", "FoundedYear: 1976", "FoundedYear: 1998", "FoundedYear: 1975", "Industry: Finance"}},
		{"197", []string{"FoundedYear: 1976", "FoundedYear: 1975"}},
		{"zz", nil},
		{"  ", nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, Suggest(tt.prefix, columns, values)); diff != "" {
			t.Errorf("Suggest(%q) mismatch (-want +got):\n%s", tt.prefix, diff)
		}
	}
}

func TestComplete(t *testing.T) {
	q := "show revenue by Indu"
	if w := LastWord(q); w != "Indu" {
		t.Fatalf("LastWord = %q", w)
	}
	if got := Complete(q, "Industry"); got != "show revenue by Industry" {
		t.Fatalf("Complete = %q", got)
	}
	if got := Complete("", "Revenue"); got != "Revenue" {
		t.Fatalf("Complete empty = %q", got)
	}
}
