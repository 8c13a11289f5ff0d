package jira

import (
	gojson "github.com/goccy/go-json"
)

// pageEnvelope is a shape-independent view of one API page. It carries
// the raw items plus whichever paging hints the endpoint provided.
type pageEnvelope struct {
	items []gojson.RawMessage

	total    int64
	hasTotal bool

	isLast    bool
	hasIsLast bool

	nextToken string
}

// totalUsable reports whether the total can drive termination. Jira
// reports -1 when the count is unknown.
func (env *pageEnvelope) totalUsable() bool {
	return env.hasTotal && env.total != -1
}

// parseEnvelope extracts a pageEnvelope from a response body using the
// resource's envelope key ("" means the body is a bare JSON array, or a
// single object treated as one item). Malformed bodies yield an empty
// envelope rather than an error; pagination terminates on them.
func parseEnvelope(body []byte, envelopeKey string) *pageEnvelope {
	env := &pageEnvelope{}

	if envelopeKey == "" {
		var items []gojson.RawMessage
		if err := gojson.Unmarshal(body, &items); err == nil {
			env.items = items
			return env
		}

		// A single JSON object counts as a one-item page.
		var obj map[string]gojson.RawMessage
		if err := gojson.Unmarshal(body, &obj); err == nil && len(obj) > 0 {
			env.items = []gojson.RawMessage{body}
		}
		return env
	}

	var fields map[string]gojson.RawMessage
	if err := gojson.Unmarshal(body, &fields); err != nil {
		return env
	}

	if raw, ok := fields[envelopeKey]; ok {
		var items []gojson.RawMessage
		if err := gojson.Unmarshal(raw, &items); err == nil {
			env.items = items
		}
	}

	if raw, ok := fields["total"]; ok {
		var total int64
		if err := gojson.Unmarshal(raw, &total); err == nil {
			env.total = total
			env.hasTotal = true
		}
	}

	// Service Management endpoints report isLastPage instead of isLast.
	for _, key := range []string{"isLast", "isLastPage"} {
		if raw, ok := fields[key]; ok {
			var isLast bool
			if err := gojson.Unmarshal(raw, &isLast); err == nil {
				env.isLast = isLast
				env.hasIsLast = true
				break
			}
		}
	}

	if raw, ok := fields["nextPageToken"]; ok {
		var token string
		if err := gojson.Unmarshal(raw, &token); err == nil {
			env.nextToken = token
		}
	}

	return env
}

// nextCursor resolves the cursor for the page after env. The decision
// list is ordered and the first match wins:
//
//  1. prev defaults to 0; count is the item count of this page.
//  2. isLast reported false and total unusable: advance, more pages.
//  3. page empty, or total known and consumed: done.
//  4. otherwise advance, more pages.
//
// Empty pages always terminate, so malformed responses degrade to a
// stopped stream instead of a spin or an error.
func nextCursor(prev int64, env *pageEnvelope) (int64, bool) {
	if prev < 0 {
		prev = 0
	}
	count := int64(len(env.items))

	if env.hasIsLast && !env.isLast && !env.totalUsable() {
		return prev + count, true
	}

	if count == 0 || (env.totalUsable() && env.total <= prev+count) {
		return prev + count, false
	}

	return prev + count, true
}
