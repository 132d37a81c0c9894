package jsonenc_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ahimsalabs/payloadwriter-go/payloadwriter"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/encoding/jsonenc"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/memorymodel"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/selection"
)

const testSchema = `
namespace: Sales
types:
  - name: Customer
    properties: [Id, Name]
    navigation:
      - {name: Orders, target: Order, collection: true}
      - {name: BestFriend, target: Customer}
  - name: VipCustomer
    base: Customer
  - name: Order
    properties: [Id]
sources:
  - name: Customers
    type: Customer
    bindings: {Orders: Orders, BestFriend: Customers}
  - name: Orders
    type: Order
`

func ptr[T any](v T) *T { return &v }

func prop(name string, v any) payloadwriter.Property {
	return payloadwriter.Property{Name: name, Value: v}
}

// step is one write-intent call.
type step func(w *payloadwriter.Writer) error

func collection(c *payloadwriter.Collection) step {
	return func(w *payloadwriter.Writer) error { return w.StartCollection(c) }
}

func resource(r *payloadwriter.Resource) step {
	return func(w *payloadwriter.Writer) error { return w.StartResource(r) }
}

func nested(n *payloadwriter.NestedInfo) step {
	return func(w *payloadwriter.Writer) error { return w.StartNested(n) }
}

func link(url string) step {
	return func(w *payloadwriter.Writer) error {
		return w.WriteReferenceLink(&payloadwriter.ReferenceLink{URL: url})
	}
}

func end(w *payloadwriter.Writer) error { return w.End() }

func run(t *testing.T, cfg *payloadwriter.Config, steps ...step) string {
	t.Helper()
	var buf bytes.Buffer
	w := payloadwriter.New(jsonenc.New(&buf, nil), cfg)
	for i, s := range steps {
		if err := s(w); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if w.State() != payloadwriter.StateCompleted {
		t.Fatalf("state = %v, want Completed", w.State())
	}
	if !json.Valid(buf.Bytes()) {
		t.Fatalf("output is not valid JSON: %s", buf.String())
	}
	return buf.String()
}

func TestEncoder_TopLevelCollection(t *testing.T) {
	got := run(t, &payloadwriter.Config{WritingCollection: true},
		collection(&payloadwriter.Collection{Count: ptr(int64(2)), NextLink: "next"}),
		resource(&payloadwriter.Resource{ID: "C(1)", Properties: []payloadwriter.Property{prop("Id", 1), prop("Name", "a")}}),
		end,
		resource(&payloadwriter.Resource{Properties: []payloadwriter.Property{prop("Id", 2)}}),
		end,
		end,
	)
	want := `{"@count":2,"value":[{"@id":"C(1)","Id":1,"Name":"a"},{"Id":2}],"@nextLink":"next"}`
	if got != want {
		t.Errorf("output:\n got %s\nwant %s", got, want)
	}
}

func TestEncoder_ResourceWithModel(t *testing.T) {
	m, err := memorymodel.Load(strings.NewReader(testSchema))
	if err != nil {
		t.Fatal(err)
	}
	customers, _ := m.Source("Customers")

	got := run(t, &payloadwriter.Config{Model: m, NavigationSource: customers},
		resource(&payloadwriter.Resource{TypeName: "Sales.VipCustomer", Key: "1", Properties: []payloadwriter.Property{prop("Id", 1)}}),
		nested(&payloadwriter.NestedInfo{Name: "Orders"}),
		collection(&payloadwriter.Collection{}),
		resource(&payloadwriter.Resource{Properties: []payloadwriter.Property{prop("Id", 10)}}),
		end,
		end,
		end,
		nested(&payloadwriter.NestedInfo{Name: "BestFriend", URL: "Customers(1)/BestFriend"}),
		end,
		end,
	)
	want := `{"@context":"Customers/$entity","@type":"#Sales.VipCustomer","Id":1,` +
		`"Orders":[{"Id":10}],"BestFriend@navigationLink":"Customers(1)/BestFriend"}`
	if got != want {
		t.Errorf("output:\n got %s\nwant %s", got, want)
	}
}

func TestEncoder_RequestBindings(t *testing.T) {
	got := run(t, &payloadwriter.Config{WritingRequest: true},
		resource(&payloadwriter.Resource{Properties: []payloadwriter.Property{prop("Name", "x")}}),
		nested(&payloadwriter.NestedInfo{Name: "Orders", IsCollection: ptr(true)}),
		link("Orders(1)"),
		link("Orders(2)"),
		end,
		nested(&payloadwriter.NestedInfo{Name: "Items", IsCollection: ptr(true)}),
		resource(&payloadwriter.Resource{Properties: []payloadwriter.Property{prop("Id", 1)}}),
		end,
		resource(&payloadwriter.Resource{Properties: []payloadwriter.Property{prop("Id", 2)}}),
		end,
		end,
		nested(&payloadwriter.NestedInfo{Name: "Owner", IsCollection: ptr(false)}),
		link("People(7)"),
		end,
		end,
	)
	want := `{"Name":"x","Orders@bind":["Orders(1)","Orders(2)"],"Items":[{"Id":1},{"Id":2}],"Owner@bind":"People(7)"}`
	if got != want {
		t.Errorf("output:\n got %s\nwant %s", got, want)
	}
}

func TestEncoder_NullNestedResource(t *testing.T) {
	got := run(t, nil,
		resource(&payloadwriter.Resource{Properties: []payloadwriter.Property{prop("Id", 1)}}),
		nested(&payloadwriter.NestedInfo{Name: "Manager", IsCollection: ptr(false)}),
		resource(nil),
		end,
		end,
		end,
	)
	want := `{"Id":1,"Manager":null}`
	if got != want {
		t.Errorf("output:\n got %s\nwant %s", got, want)
	}
}

func TestEncoder_DeltaSuppressesTopLevelBody(t *testing.T) {
	got := run(t, &payloadwriter.Config{WritingDelta: true},
		resource(&payloadwriter.Resource{Properties: []payloadwriter.Property{prop("Id", 1)}}),
		nested(&payloadwriter.NestedInfo{Name: "Orders", IsCollection: ptr(true)}),
		collection(&payloadwriter.Collection{}),
		resource(&payloadwriter.Resource{Properties: []payloadwriter.Property{prop("Id", 5)}}),
		end,
		end,
		end,
		end,
	)
	want := `{"Orders":[{"Id":5}]}`
	if got != want {
		t.Errorf("output:\n got %s\nwant %s", got, want)
	}
}

func TestEncoder_SelectionSkipsMember(t *testing.T) {
	got := run(t, &payloadwriter.Config{Selection: selection.MustParse("Friends")},
		resource(&payloadwriter.Resource{Properties: []payloadwriter.Property{prop("Id", 1)}}),
		nested(&payloadwriter.NestedInfo{Name: "Orders", IsCollection: ptr(true)}),
		collection(&payloadwriter.Collection{}),
		resource(&payloadwriter.Resource{Properties: []payloadwriter.Property{prop("Id", 5)}}),
		end,
		end,
		end,
		end,
	)
	want := `{"Id":1}`
	if got != want {
		t.Errorf("output:\n got %s\nwant %s", got, want)
	}
}

func TestEncoder_NestedCollectionAnnotations(t *testing.T) {
	got := run(t, nil,
		resource(&payloadwriter.Resource{Properties: []payloadwriter.Property{prop("Id", 1)}}),
		nested(&payloadwriter.NestedInfo{Name: "Orders", IsCollection: ptr(true)}),
		collection(&payloadwriter.Collection{Count: ptr(int64(9)), NextLink: "more"}),
		end,
		end,
		end,
	)
	want := `{"Id":1,"Orders@count":9,"Orders":[],"Orders@nextLink":"more"}`
	if got != want {
		t.Errorf("output:\n got %s\nwant %s", got, want)
	}
}

func TestEncoder_InStreamError(t *testing.T) {
	var buf bytes.Buffer
	w := payloadwriter.New(jsonenc.New(&buf, nil), &payloadwriter.Config{WritingCollection: true})

	if err := w.StartCollection(&payloadwriter.Collection{}); err != nil {
		t.Fatal(err)
	}
	if err := w.StartResource(&payloadwriter.Resource{Properties: []payloadwriter.Property{prop("Id", 1)}}); err != nil {
		t.Fatal(err)
	}
	if err := w.End(); err != nil {
		t.Fatal(err)
	}
	if err := w.NotifyInStreamError(&payloadwriter.ErrorDetail{Code: "500", Message: "boom"}); err != nil {
		t.Fatalf("NotifyInStreamError() error = %v", err)
	}
	if w.State() != payloadwriter.StateError {
		t.Errorf("state = %v, want Error", w.State())
	}

	want := `{"value":[{"Id":1},{"@error":{"code":"500","message":"boom"}}`
	if got := buf.String(); got != want {
		t.Errorf("output:\n got %s\nwant %s", got, want)
	}
}

func TestEncoder_OmitContext(t *testing.T) {
	var buf bytes.Buffer
	cfg := &payloadwriter.Config{Path: payloadwriter.SourcePath("People", true)}
	w := payloadwriter.New(jsonenc.New(&buf, &jsonenc.Options{OmitContext: true}), cfg)
	if err := w.StartResource(&payloadwriter.Resource{}); err != nil {
		t.Fatal(err)
	}
	if err := w.End(); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != `{}` {
		t.Errorf("output = %s, want {}", got)
	}
}

func TestEncoder_FlushContextCanceled(t *testing.T) {
	enc := jsonenc.New(&bytes.Buffer{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := enc.FlushContext(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("FlushContext() error = %v, want context.Canceled", err)
	}
}

func TestEncoder_ContentType(t *testing.T) {
	if got := jsonenc.New(&bytes.Buffer{}, nil).ContentType(); got != "application/json" {
		t.Errorf("ContentType() = %q", got)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestEncoder_WriteErrorSurfaces(t *testing.T) {
	tests := []struct {
		name       string
		bufferSize int
	}{
		{"on a hook", 1},
		{"on the final flush", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := jsonenc.New(failingWriter{}, &jsonenc.Options{BufferSize: tt.bufferSize})
			w := payloadwriter.New(enc, &payloadwriter.Config{WritingCollection: true})

			var err error
			for _, s := range []step{
				collection(&payloadwriter.Collection{}),
				resource(&payloadwriter.Resource{Properties: []payloadwriter.Property{prop("Id", 1)}}),
				end,
				end,
			} {
				if err = s(w); err != nil {
					break
				}
			}
			if err == nil || !strings.Contains(err.Error(), "disk full") {
				t.Fatalf("error = %v, want the write error", err)
			}
			if w.State() != payloadwriter.StateError {
				t.Errorf("State() = %v, want Error", w.State())
			}
		})
	}
}
