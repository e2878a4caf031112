package graphql

import (
	"context"
	"errors"
	"reflect"
	"testing"

	cqerrors "github.com/Combine-Capital/cqtrace/pkg/errors"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

func exceptionOf(t *testing.T, e *gqlerror.Error) map[string]interface{} {
	t.Helper()
	exception, ok := e.Extensions[extensionException].(map[string]interface{})
	if !ok {
		t.Fatalf("extensions.exception = %v, want object", e.Extensions[extensionException])
	}
	return exception
}

// TestErrorFormatter verifies the exception rewrite rules
func TestErrorFormatter(t *testing.T) {
	format := ErrorFormatter(nil)

	tests := []struct {
		name       string
		extensions map[string]interface{}
		want       map[string]interface{}
	}{
		{
			name: "validation errors",
			extensions: map[string]interface{}{
				extensionException: map[string]interface{}{
					validationErrors: []interface{}{"title is required"},
					"stacktrace":     []string{"at resolver"},
				},
			},
			want: map[string]interface{}{
				"code":           400,
				"message":        "Validation error",
				validationErrors: []interface{}{"title is required"},
			},
		},
		{
			name:       "unauthenticated",
			extensions: map[string]interface{}{extensionCode: "UNAUTHENTICATED"},
			want:       map[string]interface{}{"code": 401, "message": "Authentication error"},
		},
		{
			name:       "forbidden",
			extensions: map[string]interface{}{extensionCode: "FORBIDDEN"},
			want:       map[string]interface{}{"code": 403, "message": "Forbidden error"},
		},
		{
			name:       "missing exception",
			extensions: map[string]interface{}{},
			want:       map[string]interface{}{"code": 500, "message": "Server error"},
		},
		{
			name: "exception without code",
			extensions: map[string]interface{}{
				extensionException: map[string]interface{}{"message": "db down"},
			},
			want: map[string]interface{}{"code": 500, "message": "Server error"},
		},
		{
			name: "exception with code is kept",
			extensions: map[string]interface{}{
				extensionException: map[string]interface{}{"code": 409, "message": "conflict"},
			},
			want: map[string]interface{}{"code": 409, "message": "conflict"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := format(&gqlerror.Error{Message: "boom", Extensions: tt.extensions})
			if exception := exceptionOf(t, got); !reflect.DeepEqual(exception, tt.want) {
				t.Errorf("exception = %v, want %v", exception, tt.want)
			}
		})
	}
}

// TestErrorFormatterNoExtensions verifies plain errors pass through
func TestErrorFormatterNoExtensions(t *testing.T) {
	e := &gqlerror.Error{Message: "syntax error"}
	got := ErrorFormatter(nil)(e)
	if got.Extensions != nil {
		t.Errorf("Extensions = %v, want nil", got.Extensions)
	}
	if ErrorFormatter(nil)(nil) != nil {
		t.Error("formatting nil should return nil")
	}
}

// TestErrorFormatterLists verifies whitelist and blacklist filtering
func TestErrorFormatterLists(t *testing.T) {
	newErr := func() *gqlerror.Error {
		return &gqlerror.Error{
			Message: "conflict",
			Extensions: map[string]interface{}{
				extensionException: map[string]interface{}{"code": 409, "message": "conflict", "stacktrace": "..."},
			},
		}
	}

	white := ErrorFormatter(&FormatterOptions{WhiteList: []string{"code", "message"}})(newErr())
	if want := map[string]interface{}{"code": 409, "message": "conflict"}; !reflect.DeepEqual(exceptionOf(t, white), want) {
		t.Errorf("whitelisted exception = %v, want %v", exceptionOf(t, white), want)
	}

	black := ErrorFormatter(&FormatterOptions{BlackList: []string{"stacktrace"}})(newErr())
	if _, ok := exceptionOf(t, black)["stacktrace"]; ok {
		t.Error("blacklisted key kept")
	}

	both := ErrorFormatter(&FormatterOptions{WhiteList: []string{"code", "stacktrace"}, BlackList: []string{"stacktrace"}})(newErr())
	if want := map[string]interface{}{"code": 409}; !reflect.DeepEqual(exceptionOf(t, both), want) {
		t.Errorf("exception = %v, want %v", exceptionOf(t, both), want)
	}
}

// TestErrorFormatterTypedErrors verifies causes are classified through pkg/errors
func TestErrorFormatterTypedErrors(t *testing.T) {
	format := ErrorFormatter(nil)

	tests := []struct {
		name     string
		err      error
		wantCode string
		wantHTTP int
	}{
		{"unauthorized", cqerrors.NewUnauthorized("no session"), cqerrors.CodeUnauthenticated, 401},
		{"forbidden", cqerrors.NewForbidden("publish job"), cqerrors.CodeForbidden, 403},
		{"validation", cqerrors.NewValidation().Add("title", "is required"), cqerrors.CodeBadUserInput, 400},
		{"not found", cqerrors.NewNotFound("job", "7"), cqerrors.CodeNotFound, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := format(&gqlerror.Error{Message: tt.err.Error(), Err: tt.err})
			if got.Extensions[extensionCode] != tt.wantCode {
				t.Errorf("code = %v, want %v", got.Extensions[extensionCode], tt.wantCode)
			}
			if exception := exceptionOf(t, got); exception["code"] != tt.wantHTTP {
				t.Errorf("exception.code = %v, want %v", exception["code"], tt.wantHTTP)
			}
		})
	}
}

// TestPresenter verifies arbitrary errors are converted
func TestPresenter(t *testing.T) {
	present := Presenter(nil)

	got := present(context.Background(), errors.New("db down"))
	if got.Message != "db down" {
		t.Errorf("Message = %v, want 'db down'", got.Message)
	}
	if got.Extensions != nil {
		t.Errorf("Extensions = %v, want nil for untyped error", got.Extensions)
	}

	got = present(context.Background(), cqerrors.NewForbidden("delete"))
	if exceptionOf(t, got)["code"] != 403 {
		t.Errorf("exception = %v, want code 403", got.Extensions[extensionException])
	}
}
