package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/document"
	"github.com/ahimsalabs/payloadwriter-go/storage/badgerstore"
)

func TestToProtoError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   errorCode
		wantStatus int
	}{
		{"protocol error", newError(codeNotFound, "gone"), codeNotFound, http.StatusNotFound},
		{"invalid document", fmt.Errorf("parsing: %w", document.ErrInvalidDocument), codeBadRequest, http.StatusBadRequest},
		{"not found", badgerstore.ErrNotFound, codeNotFound, http.StatusNotFound},
		{"too large", badgerstore.ErrTooLarge, codePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{"bad id", badgerstore.ErrBadRequest, codeBadRequest, http.StatusBadRequest},
		{"closed store", badgerstore.ErrClosed, codeUnavailable, http.StatusServiceUnavailable},
		{"canceled", fmt.Errorf("flush: %w", context.Canceled), codeUnavailable, http.StatusServiceUnavailable},
		{"corrupt", badgerstore.ErrCorrupt, codeInternal, http.StatusInternalServerError},
		{"other", errors.New("boom"), codeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := toProtoError(tt.err)
			if pe.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", pe.Code, tt.wantCode)
			}
			if got := pe.Code.httpStatus(); got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}
