package jira

import (
	"sort"
	"strings"

	stringpool "github.com/atlasync/atlasync/pkg/strings"
)

// siteBase resolves the base URL for an API flavor. A configured cloud
// id routes through the Atlassian API gateway; otherwise the request
// goes straight to the site domain. No port suffix is ever appended.
func siteBase(domain, cloudID string, api apiFlavor) string {
	if cloudID != "" {
		return "https://api.atlassian.com/ex/jira/" + cloudID + string(api)
	}
	if strings.Contains(domain, "://") {
		return domain + string(api)
	}
	return "https://" + domain + string(api)
}

// resourceURL builds the full request URL for one page of a resource.
// Query parameters are appended in sorted key order so URLs are
// deterministic.
func resourceURL(domain, cloudID string, desc streamDescriptor, path string, params map[string]string) string {
	if path == "" {
		path = desc.path
	}

	ub := stringpool.NewURLBuilder(siteBase(domain, cloudID, desc.api) + path)
	defer ub.Close()

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		ub.AddParam(key, params[key])
	}

	return ub.String()
}

// substitutePath replaces the single {placeholder} segment in a child
// resource path with the parent key.
func substitutePath(path, key string) string {
	open := strings.IndexByte(path, '{')
	if open < 0 {
		return path
	}
	end := strings.IndexByte(path[open:], '}')
	if end < 0 {
		return path
	}
	return path[:open] + key + path[open+end+1:]
}
