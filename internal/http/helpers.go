package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"budget/internal/core"
)

func intParsingError(loc ...string) core.FieldError {
	return core.FieldError{
		Loc:  loc,
		Type: "int_parsing",
		Msg:  "Input should be a valid integer, unable to parse string as an integer",
	}
}

// parseNonNegativeQuery reads an optional integer query parameter that must
// be zero or more. An empty value counts as absent.
func parseNonNegativeQuery(query url.Values, name string, def int) (int, *core.FieldError) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fe := intParsingError("query", name)
		return 0, &fe
	}
	if n < 0 {
		return 0, &core.FieldError{
			Loc:  []string{"query", name},
			Type: "greater_than_equal",
			Msg:  "Input should be greater than or equal to 0",
		}
	}
	return n, nil
}

// parsePaging extracts skip and limit, reporting both when both are bad.
func parsePaging(r *http.Request, defaultLimit int) (skip, limit int, err error) {
	query := r.URL.Query()
	var errs core.ValidationErrors

	skip, fe := parseNonNegativeQuery(query, "skip", 0)
	if fe != nil {
		errs = append(errs, *fe)
	}
	limit, fe = parseNonNegativeQuery(query, "limit", defaultLimit)
	if fe != nil {
		errs = append(errs, *fe)
	}

	if len(errs) > 0 {
		return 0, 0, errs
	}
	return skip, limit, nil
}

// parseItemID reads the {item_id} path variable.
func parseItemID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["item_id"], 10, 64)
	if err != nil {
		return 0, core.ValidationErrors{intParsingError("path", "item_id")}
	}
	return id, nil
}
