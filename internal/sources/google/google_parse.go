package google

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"google.golang.org/api/googleapi"
)

// toRows converts a values matrix (as returned by the Sheets API) into
// string records. Trailing empty cells are omitted by the API, so rows
// may be shorter than the header.
func toRows(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = toStrings(row)
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = cellString(v)
	}
	return out
}

// cellString renders a cell without the exponent notation fmt uses for
// large floats.
func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "1"
		}
		return "0"
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
