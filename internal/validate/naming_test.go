package validate

import "testing"

func TestSingularize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"categories", "category"},
		{"statuses", "status"},
		{"orders", "order"},
		{"customers", "customer"},
		{"address", "address"},
		{"person", "person"},
	}
	for _, tt := range tests {
		if got := singularize(tt.in); got != tt.want {
			t.Errorf("singularize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConventionNaming(t *testing.T) {
	s := ConventionNaming{}
	tests := []struct {
		field  string
		target string
		want   bool
	}{
		{"customer_id", "customers", true},
		{"customers_id", "customers", true},
		{"category_id", "categories", true},
		{"parent_id", "customers", true}, // any *_id passes
		{"buyer", "customers", false},
		{"customer", "customers", false},
	}
	for _, tt := range tests {
		if got := s.Matches(tt.field, tt.target); got != tt.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tt.field, tt.target, got, tt.want)
		}
	}
	if exp := s.ExpectedName("categories"); exp != "category_id" {
		t.Errorf("ExpectedName(categories) = %q", exp)
	}
}

func TestClosestName(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		candidates []string
		want       string
		ok         bool
	}{
		{"case insensitive", "Customers", []string{"customers", "orders"}, "customers", true},
		{"singular of plural", "customer", []string{"customers", "orders"}, "customers", true},
		{"one char typo", "custmers", []string{"customers", "orders"}, "customers", true},
		{"two char typo", "custmer", []string{"customers", "orders"}, "customers", true},
		{"too far", "zzz", []string{"customers", "orders"}, "", false},
		{"ambiguous distance", "aab", []string{"aaa", "abb"}, "", false},
		{"substring", "invoice", []string{"invoice_lines", "orders"}, "invoice_lines", true},
		{"no candidates", "x", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := closestName(tt.input, tt.candidates)
			if got != tt.want || ok != tt.ok {
				t.Errorf("closestName(%q, %v) = (%q, %v), want (%q, %v)",
					tt.input, tt.candidates, got, ok, tt.want, tt.ok)
			}
		})
	}
}
