package utils

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/leeforge/bot/json"
)

// PrintJSON writes v to w as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// Routes lists "METHOD /path" for every route registered on r.
func Routes(r chi.Routes) ([]string, error) {
	var out []string
	walkFunc := func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		out = append(out, fmt.Sprintf("%-6s %s", method, strings.ReplaceAll(route, "/*/", "/")))
		return nil
	}
	if err := chi.Walk(r, walkFunc); err != nil {
		return nil, err
	}
	return out, nil
}
