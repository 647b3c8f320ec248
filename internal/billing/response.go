package billing

import "strconv"

// Response is a decoded billing-service body. The service is loosely typed:
// a park-in answer may carry the trip id at the top level or nested under
// "data", and unusable bodies are represented as soft errors with an "error"
// key. All shape handling lives in the accessors below.
type Response map[string]any

// TripID extracts the trip identifier from "trip_id" or "data.trip_id",
// accepting string or numeric values.
func (r Response) TripID() (string, bool) {
	if r == nil {
		return "", false
	}
	if id, ok := asString(r["trip_id"]); ok {
		return id, true
	}
	if data, ok := r["data"].(map[string]any); ok {
		if id, ok := asString(data["trip_id"]); ok {
			return id, true
		}
	}
	return "", false
}

// SoftError reports whether the response is a soft error (the service
// answered, but the body was empty or undecodable) and its reason.
func (r Response) SoftError() (string, bool) {
	if r == nil {
		return "", false
	}
	reason, ok := asString(r["error"])
	if !ok || reason == "" {
		return "", false
	}
	return reason, true
}

// RawBody returns the undecodable body text attached to an
// "Invalid JSON response" soft error.
func (r Response) RawBody() string {
	raw, _ := asString(r["raw"])
	return raw
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, s != ""
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10), true
		}
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	default:
		return "", false
	}
}
