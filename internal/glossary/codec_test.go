package glossary

import (
	"reflect"
	"testing"
)

func TestNewRule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to string
		want     Rule
		wantOK   bool
	}{
		{"Dr.", "Doutor", Rule{From: "dr.", To: "Doutor"}, true},
		{"  SEU  ", " sua ", Rule{From: "seu", To: "sua"}, true},
		{"", "x", Rule{}, false},
		{"x", "   ", Rule{}, false},
	}
	for _, tc := range tests {
		got, ok := NewRule(tc.from, tc.to)
		if ok != tc.wantOK || got != tc.want {
			t.Errorf("NewRule(%q, %q) = (%+v, %v), want (%+v, %v)", tc.from, tc.to, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		rules []Rule
		want  string
	}{
		{"nil", nil, "[]"},
		{"empty", []Rule{}, "[]"},
		{"ordered", []Rule{{From: "b", To: "2"}, {From: "a", To: "1"}}, `[{"from":"b","to":"2"},{"from":"a","to":"1"}]`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Encode(tc.rules)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if got != tc.want {
				t.Errorf("Encode = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    []Rule
		wantErr bool
	}{
		{"empty array", "[]", []Rule{}, false},
		{"null", "null", []Rule{}, false},
		{"kept verbatim", `[{"from":"Dr.","to":" Doutor "}]`, []Rule{{From: "Dr.", To: " Doutor "}}, false},
		{"unknown fields ignored", `[{"from":"a","to":"b","note":"x"}]`, []Rule{{From: "a", To: "b"}}, false},
		{"garbage", "not json", nil, true},
		{"object", `{}`, nil, true},
		{"empty string", "", nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Decode(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
			if !tc.wantErr && !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Decode(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
