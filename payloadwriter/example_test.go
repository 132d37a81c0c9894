package payloadwriter_test

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ahimsalabs/payloadwriter-go/payloadwriter"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/encoding/jsonenc"
)

func Example() {
	var buf bytes.Buffer
	w := payloadwriter.New(jsonenc.New(&buf, nil), &payloadwriter.Config{WritingCollection: true})

	w.StartCollection(&payloadwriter.Collection{})
	for id := 1; id <= 2; id++ {
		w.StartResource(&payloadwriter.Resource{
			Properties: []payloadwriter.Property{{Name: "Id", Value: id}},
		})
		w.End()
	}
	if err := w.End(); err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println(buf.String())
	fmt.Println(w.State())
	// Output:
	// {"value":[{"Id":1},{"Id":2}]}
	// Completed
}

func ExampleWriter_StartNested() {
	var buf bytes.Buffer
	w := payloadwriter.New(jsonenc.New(&buf, nil), nil)

	w.StartResource(&payloadwriter.Resource{
		Properties: []payloadwriter.Property{{Name: "Id", Value: 1}},
	})
	w.StartNested(&payloadwriter.NestedInfo{Name: "Manager"})
	w.StartResource(nil)
	w.End()
	w.End()
	w.End()

	fmt.Println(buf.String())
	// Output:
	// {"Id":1,"Manager":null}
}

func ExampleWriter_NotifyInStreamError() {
	var buf bytes.Buffer
	w := payloadwriter.New(jsonenc.New(&buf, nil), &payloadwriter.Config{WritingRequest: true})

	w.StartResource(&payloadwriter.Resource{})
	w.StartNested(&payloadwriter.NestedInfo{Name: "Orders"})
	err := w.End()

	fmt.Println(errors.Is(err, payloadwriter.ErrDeferredReferenceInRequest))
	fmt.Println(w.State())
	fmt.Println(w.NotifyInStreamError(nil))
	// Output:
	// true
	// Error
	// <nil>
}
