package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *E
		want string
	}{
		{
			name: "without cause",
			err:  New(Validation, "missing required argument: query"),
			want: "validation: missing required argument: query",
		},
		{
			name: "with cause",
			err:  Wrap(Statement, "query failed", stderrors.New("syntax error at or near \"FORM\"")),
			want: "statement: query failed: syntax error at or near \"FORM\"",
		},
		{
			name: "formatted message",
			err:  Newf(Connection, "cannot reach %s:%d", "localhost", 5432),
			want: "connection: cannot reach localhost:5432",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "direct kind",
			err:  New(Connection, "refused"),
			want: Connection,
		},
		{
			name: "wrapped with fmt.Errorf",
			err:  fmt.Errorf("calling gateway: %w", New(Serialization, "bad value")),
			want: Serialization,
		},
		{
			name: "plain error defaults to statement",
			err:  stderrors.New("relation \"missing\" does not exist"),
			want: Statement,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	wrapped := Wrap(Statement, "query failed", stderrors.New("division by zero"))
	if got, want := Message(wrapped), "query failed: division by zero"; got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
	plain := stderrors.New("broken pipe")
	if got := Message(plain); got != "broken pipe" {
		t.Errorf("Message() = %q, want %q", got, "broken pipe")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(Connection, "opening connection", cause)
	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should match its cause with errors.Is")
	}
}
