package nautobot

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/newtron-network/sotboard/pkg/sot"
)

// Catalogue maps the messages Nautobot returns for rejected writes to error
// kinds. Order matters: the first matching pattern wins.
var Catalogue = []sot.Pattern{
	sot.MustPattern(sot.KindNotAssigned, `(?i)is not assigned to this device`),
	sot.MustPattern(sot.KindUniqueViolation, `(?i)must make a unique set`),
	sot.MustPattern(sot.KindUniqueViolation, `(?i)duplicate key value violates unique constraint`),
	sot.MustPattern(sot.KindAlreadyExists, `(?i)with this [a-z ]+ already exists`),
	sot.MustPattern(sot.KindNotFound, `(?i)related object not found|does not exist|no [a-z]+ matches the given query`),
	sot.MustPattern(sot.KindInvalid, `(?i)this field is required|not a valid|invalid pk`),
}

// DefaultClassifier classifies with Catalogue.
func DefaultClassifier() *sot.Classifier {
	return sot.NewClassifier(Catalogue...)
}

// statusKind is the kind of an HTTP status whose message matched nothing.
func statusKind(status int) sot.ErrorKind {
	switch status {
	case http.StatusNotFound:
		return sot.KindNotFound
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return sot.KindTransient
	}
	return sot.KindUnknown
}

// errorMessage flattens a Nautobot error body into one line. Bodies are
// {"detail": "..."}, {"field": ["msg", ...]} or, for bulk writes, a list
// of those.
func errorMessage(body []byte, status int) string {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		if s := strings.TrimSpace(string(body)); s != "" && len(s) < 512 {
			return s
		}
		return http.StatusText(status)
	}
	var parts []string
	collect(v, "", &parts)
	if len(parts) == 0 {
		return http.StatusText(status)
	}
	return strings.Join(parts, "; ")
}

func collect(v interface{}, field string, parts *[]string) {
	switch val := v.(type) {
	case string:
		if field == "" || field == "detail" || field == "non_field_errors" || field == "__all__" {
			*parts = append(*parts, val)
		} else {
			*parts = append(*parts, field+": "+val)
		}
	case []interface{}:
		for _, item := range val {
			collect(item, field, parts)
		}
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collect(val[k], k, parts)
		}
	}
}
