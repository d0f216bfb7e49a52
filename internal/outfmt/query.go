package outfmt

import (
	"context"
	"io"

	"github.com/sinkingmoon/bubbles/internal/response"
)

type queryKey struct{}

// WithQuery adds a JQ query to the context
func WithQuery(ctx context.Context, query string) context.Context {
	return context.WithValue(ctx, queryKey{}, query)
}

// GetQuery retrieves the JQ query from context
func GetQuery(ctx context.Context) string {
	if q, ok := ctx.Value(queryKey{}).(string); ok {
		return q
	}
	return ""
}

// WriteValue writes v in the given mode after applying query. In text mode
// scalars are printed bare, so `-q .auth_token` yields just the token.
func WriteValue(w io.Writer, v response.Value, mode Mode, query string, compact bool) error {
	filtered, err := v.Query(query)
	if err != nil {
		return err
	}

	switch mode {
	case JSON:
		return WriteJSON(w, filtered, compact)
	case JSONL:
		if filtered.Kind() != response.Array {
			return WriteJSON(w, filtered, true)
		}
		items, _ := filtered.Items()
		for _, item := range items {
			if err := WriteJSON(w, item, true); err != nil {
				return err
			}
		}
		return nil
	default:
		return writeText(w, filtered)
	}
}

func writeText(w io.Writer, v response.Value) error {
	switch v.Kind() {
	case response.Object, response.Array:
		return WriteJSON(w, v, false)
	case response.Null:
		return nil
	default:
		_, err := io.WriteString(w, v.Text()+"\n")
		return err
	}
}
