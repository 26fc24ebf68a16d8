package recordgen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fabrica/fabrica/internal/schema"
)

func req(fieldType schema.FieldType, c *schema.ConstraintSet, index int) Request {
	return Request{
		Entity: &schema.EntitySchema{Name: "orders"},
		Field:  "f",
		Spec:   schema.FieldSpec{Type: fieldType, Constraints: c},
		Index:  index,
	}
}

func TestLocal_IntegerBounds(t *testing.T) {
	g := NewLocal(42)
	min, max := 10.0, 20.0
	c := &schema.ConstraintSet{Min: &min, Max: &max}
	for i := 0; i < 100; i++ {
		v, err := g.GenerateValue(context.Background(), req(schema.TypeInteger, c, i))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		n, ok := v.(int64)
		if !ok {
			t.Fatalf("expected int64, got %T", v)
		}
		if n < 10 || n > 20 {
			t.Fatalf("value %d outside [10, 20]", n)
		}
	}
}

func TestLocal_NumberBounds(t *testing.T) {
	g := NewLocal(42)
	min, max := 0.0, 1.0
	c := &schema.ConstraintSet{Min: &min, Max: &max}
	for i := 0; i < 100; i++ {
		v, _ := g.GenerateValue(context.Background(), req(schema.TypeNumber, c, i))
		f := v.(float64)
		if f < 0 || f > 1 {
			t.Fatalf("value %f outside [0, 1]", f)
		}
	}
}

func TestLocal_TextLengths(t *testing.T) {
	g := NewLocal(42)
	minLen, maxLen := 5, 12
	c := &schema.ConstraintSet{MinLength: &minLen, MaxLength: &maxLen}
	for i := 0; i < 50; i++ {
		v, _ := g.GenerateValue(context.Background(), req(schema.TypeText, c, i))
		s := v.(string)
		if len(s) < minLen || len(s) > maxLen {
			t.Fatalf("text %q length %d outside [%d, %d]", s, len(s), minLen, maxLen)
		}
	}
}

func TestLocal_UniqueIntegers(t *testing.T) {
	g := NewLocal(42)
	c := &schema.ConstraintSet{Unique: true}
	seen := make(map[int64]bool)
	for i := 0; i < 200; i++ {
		v, _ := g.GenerateValue(context.Background(), req(schema.TypeInteger, c, i))
		n := v.(int64)
		if seen[n] {
			t.Fatalf("duplicate unique integer %d at index %d", n, i)
		}
		seen[n] = true
	}
}

func TestLocal_Deterministic(t *testing.T) {
	run := func() []any {
		g := NewLocal(7)
		var out []any
		for i := 0; i < 20; i++ {
			v, err := g.GenerateValue(context.Background(), req(schema.TypeText, nil, i))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			out = append(out, v)
		}
		return out
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("seeded runs diverged at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestLocal_IDsUnique(t *testing.T) {
	g := NewLocal(42)
	seen := make(map[any]bool)
	for i := 0; i < 500; i++ {
		v, err := g.GenerateValue(context.Background(), req(schema.TypeID, nil, i))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[v] {
			t.Fatalf("duplicate id %v", v)
		}
		seen[v] = true
	}
}

func TestLocal_UUIDShape(t *testing.T) {
	g := NewLocal(42)
	v, err := g.GenerateValue(context.Background(), req(schema.TypeUUID, nil, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := v.(string)
	if len(s) != 36 || strings.Count(s, "-") != 4 {
		t.Errorf("unexpected uuid shape: %q", s)
	}
}

func TestLocal_RejectsForeignKey(t *testing.T) {
	g := NewLocal(42)
	_, err := g.GenerateValue(context.Background(), req(schema.TypeForeignKey, nil, 0))
	if !errors.Is(err, ErrForeignKeyField) {
		t.Fatalf("expected ErrForeignKeyField, got %v", err)
	}
}

func TestLocal_PatternPrefix(t *testing.T) {
	g := NewLocal(42)
	c := &schema.ConstraintSet{Pattern: `^INV-[0-9]{4}$`}
	v, _ := g.GenerateValue(context.Background(), req(schema.TypeText, c, 0))
	s := v.(string)
	if !strings.HasPrefix(s, "INV-") || len(s) != 8 {
		t.Errorf("value %q does not match INV-dddd", s)
	}
}

func TestRemote_GenerateValue(t *testing.T) {
	var got remoteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer sekrit" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(remoteResponse{Value: "Jane Doe"})
	}))
	defer srv.Close()

	r := &Remote{Endpoint: srv.URL, APIKey: "sekrit", Model: "fab-1"}
	v, err := r.GenerateValue(context.Background(), Request{
		Entity: &schema.EntitySchema{Name: "customers"},
		Field:  "name",
		Spec:   schema.FieldSpec{Type: schema.TypeText},
		Index:  3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "Jane Doe" {
		t.Errorf("value = %v", v)
	}
	if got.Entity != "customers" || got.Field != "name" || got.Index != 3 || got.Model != "fab-1" {
		t.Errorf("request payload = %+v", got)
	}
}

func TestRemote_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := &Remote{Endpoint: srv.URL}
	_, err := r.GenerateValue(context.Background(), req(schema.TypeText, nil, 0))
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected 503 error, got %v", err)
	}
}

func TestRemote_ApplicationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(remoteResponse{Error: "field not supported"})
	}))
	defer srv.Close()

	r := &Remote{Endpoint: srv.URL}
	_, err := r.GenerateValue(context.Background(), req(schema.TypeText, nil, 0))
	if err == nil || !strings.Contains(err.Error(), "field not supported") {
		t.Fatalf("expected application error, got %v", err)
	}
}
