package jira

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02T15:04:05", value)
	require.NoError(t, err)
	return parsed
}

func TestBuildJQLStartOnly(t *testing.T) {
	start := mustTime(t, "2026-01-01T12:34:56")

	jql := buildJQL(start, time.Time{}, "id != null", "updated")
	assert.Equal(t,
		"(created>='2026-01-01 12:34' or updated>='2026-01-01 12:34') and (id != null) order by updated asc",
		jql)
}

func TestBuildJQLStartAndEnd(t *testing.T) {
	start := mustTime(t, "2026-01-01T12:34:56")
	end := mustTime(t, "2026-02-01T00:00:59")

	jql := buildJQL(start, end, "id != null", "updated")
	assert.Equal(t,
		"(created>='2026-01-01 12:34' or updated>='2026-01-01 12:34') and "+
			"(created<'2026-02-01 00:00' or updated<'2026-02-01 00:00') and "+
			"(id != null) order by updated asc",
		jql)
}

func TestBuildJQLBaseFilterOnly(t *testing.T) {
	jql := buildJQL(time.Time{}, time.Time{}, "id != null", "updated")
	assert.Equal(t, "(id != null) order by updated asc", jql)
}

func TestBuildJQLEmpty(t *testing.T) {
	assert.Equal(t, "", buildJQL(time.Time{}, time.Time{}, "", "updated"))
}

func TestBuildParamsFirstPage(t *testing.T) {
	desc := catalog["issues"]
	spec := specFor(desc, 100, mustTime(t, "2026-01-01T12:34:56"), time.Time{})

	params := buildParams(spec, 0)
	assert.Equal(t, "100", params["maxResults"])
	assert.Equal(t, "asc", params["sort"])
	assert.Equal(t, "updated", params["order_by"])
	assert.NotContains(t, params, "startAt")
	assert.Equal(t,
		"(created>='2026-01-01 12:34' or updated>='2026-01-01 12:34') and (id != null) order by updated asc",
		params["jql"])
}

func TestBuildParamsWithCursor(t *testing.T) {
	desc := catalog["project"]
	spec := specFor(desc, 50, time.Time{}, time.Time{})

	params := buildParams(spec, 150)
	assert.Equal(t, "50", params["maxResults"])
	assert.Equal(t, "150", params["startAt"])
	assert.NotContains(t, params, "sort")
	assert.NotContains(t, params, "jql")
}

func TestBuildParamsServiceDeskNames(t *testing.T) {
	desc := catalog["organization"]
	spec := specFor(desc, 50, time.Time{}, time.Time{})

	params := buildParams(spec, 100)
	assert.Equal(t, "50", params["limit"])
	assert.Equal(t, "100", params["start"])
	assert.NotContains(t, params, "maxResults")
	assert.NotContains(t, params, "startAt")
}

func TestSiteBase(t *testing.T) {
	assert.Equal(t,
		"https://api.atlassian.com/ex/jira/abc-123/rest/api/3",
		siteBase("ignored.example.com", "abc-123", apiPlatform))

	assert.Equal(t,
		"https://example.atlassian.net/rest/agile/1.0",
		siteBase("example.atlassian.net", "", apiAgile))

	assert.NotContains(t, siteBase("example.atlassian.net", "", apiServiceDesk), ":443")
}

func TestResourceURL(t *testing.T) {
	desc := catalog["project"]
	url := resourceURL("example.atlassian.net", "", desc, "", map[string]string{
		"maxResults": "100",
		"startAt":    "50",
	})
	assert.Equal(t, "https://example.atlassian.net/rest/api/3/project/search?maxResults=100&startAt=50", url)
}

func TestSubstitutePath(t *testing.T) {
	assert.Equal(t, "/issue/PROJ-1/comment", substitutePath("/issue/{issue}/comment", "PROJ-1"))
	assert.Equal(t, "/board/42/sprint", substitutePath("/board/{board}/sprint", "42"))
	assert.Equal(t, "/priority", substitutePath("/priority", "x"))
}
