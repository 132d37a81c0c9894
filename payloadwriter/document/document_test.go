package document

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/ahimsalabs/payloadwriter-go/payloadwriter"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/encoding/jsonenc"
	pwtesting "github.com/ahimsalabs/payloadwriter-go/payloadwriter/testing"
)

const customerDoc = `{
  // a single customer
  "resource": {
    "type": "Sales.Customer",
    "key": "1",
    "properties": {"Name": "Ada", "Id": 1, "Score": 1.5},
    "nested": [
      {"name": "Orders", "collection": {"items": [
        {"properties": {"Id": 10}},
        {"properties": {"Id": 11}},
      ]}},
      /* deferred */
      {"name": "BestFriend", "url": "Customers(1)/BestFriend"},
      {"name": "Manager", "isCollection": false, "null": true},
    ],
  },
}`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(customerDoc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.IsCollection() {
		t.Error("IsCollection() = true, want false")
	}
	r := doc.Resource
	if r.Type != "Sales.Customer" || r.Key != "1" {
		t.Errorf("resource = %+v", r)
	}

	wantProps := Properties{
		{Name: "Name", Value: "Ada"},
		{Name: "Id", Value: int64(1)},
		{Name: "Score", Value: 1.5},
	}
	if !slices.Equal(r.Properties, wantProps) {
		t.Errorf("properties = %v, want %v", r.Properties, wantProps)
	}
	if len(r.Nested) != 3 {
		t.Fatalf("nested = %d, want 3", len(r.Nested))
	}
	if got := len(r.Nested[0].Collection.Items); got != 2 {
		t.Errorf("Orders items = %d, want 2", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", `{}`},
		{"both", `{"resource": {}, "collection": {"items": []}}`},
		{"unknown field", `{"resource": {"bogus": 1}}`},
		{"unnamed member", `{"resource": {"nested": [{"url": "x"}]}}`},
		{"null with content", `{"resource": {"nested": [{"name": "M", "null": true, "links": ["x"]}]}}`},
		{"properties not an object", `{"resource": {"properties": [1]}}`},
		{"malformed", `{"resource": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Fatal("Parse() succeeded, want error")
			}
		})
	}

	if _, err := Parse([]byte(`{}`)); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("error = %v, want ErrInvalidDocument", err)
	}
}

func TestDocument_Write(t *testing.T) {
	doc, err := Parse([]byte(customerDoc))
	if err != nil {
		t.Fatal(err)
	}
	rec := pwtesting.NewRecordingEncoder(nil)
	w := payloadwriter.New(rec, nil)

	if err := doc.Write(w); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if w.State() != payloadwriter.StateCompleted {
		t.Errorf("state = %v, want Completed", w.State())
	}

	want := []string{
		"StartPayload",
		"StartResource",
		"StartNestedWithContent", "StartCollection",
		"StartResource", "EndResource",
		"StartResource", "EndResource",
		"EndCollection", "EndNestedWithContent",
		"WriteDeferredNested",
		"StartNestedWithContent", "StartResource", "EndResource", "EndNestedWithContent",
		"EndResource",
		"EndPayload", "Flush",
	}
	if got := rec.Methods(); !slices.Equal(got, want) {
		t.Errorf("hooks:\n got %v\nwant %v", got, want)
	}
}

func TestDocument_WriteAsync(t *testing.T) {
	doc, err := Parse([]byte(`{"collection": {"count": 1, "items": [{"properties": {"Id": 1}}]}}`))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	w := payloadwriter.New(jsonenc.New(&buf, nil), &payloadwriter.Config{
		WritingCollection: doc.IsCollection(),
		Async:             true,
	})

	if err := doc.WriteAsync(context.Background(), w.Async()); err != nil {
		t.Fatalf("WriteAsync() error = %v", err)
	}
	if got, want := buf.String(), `{"@count":1,"value":[{"Id":1}]}`; got != want {
		t.Errorf("output = %s, want %s", got, want)
	}
}

func TestDocument_WriteStopsAtFirstError(t *testing.T) {
	doc, err := Parse([]byte(`{"resource": {"nested": [{"name": "Orders"}]}}`))
	if err != nil {
		t.Fatal(err)
	}
	w := payloadwriter.New(pwtesting.NewRecordingEncoder(nil), &payloadwriter.Config{WritingRequest: true})

	err = doc.Write(w)
	if !errors.Is(err, payloadwriter.ErrDeferredReferenceInRequest) {
		t.Fatalf("Write() error = %v, want ErrDeferredReferenceInRequest", err)
	}
	if w.State() != payloadwriter.StateError {
		t.Errorf("state = %v, want Error", w.State())
	}
}

func TestProperties_MarshalJSON(t *testing.T) {
	p := Properties{{Name: "b", Value: 1}, {Name: "a", Value: "x"}}
	data, err := p.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), `{"b":1,"a":"x"}`; got != want {
		t.Errorf("MarshalJSON() = %s, want %s", got, want)
	}
}
