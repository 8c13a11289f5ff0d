package jira

import (
	"sort"

	"github.com/atlasync/atlasync/pkg/connector/core"
)

// apiFlavor selects which Jira API family a resource belongs to. The
// value is the base path mounted under the site URL.
type apiFlavor string

const (
	apiPlatform    apiFlavor = "/rest/api/3"
	apiAgile       apiFlavor = "/rest/agile/1.0"
	apiServiceDesk apiFlavor = "/rest/servicedeskapi"
)

// streamDescriptor declares everything the source needs to extract one
// resource: where it lives, how its pages look and how its records are
// keyed. Resources are data, not subclasses.
type streamDescriptor struct {
	name           string
	path           string
	api            apiFlavor
	envelopeKey    string // "" means the body is a bare JSON array
	primaryKey     string
	replicationKey string
	pageSizeParam  string
	offsetParam    string

	// paged is false for endpoints that ignore offset parameters and
	// return everything in one response.
	paged bool

	// jqlFiltered resources get a date-bounded jql parameter.
	jqlFiltered bool
	baseFilter  string

	// parent names the resource whose keys feed the {issue} path
	// placeholder.
	parent string

	fields []core.Field
}

func platformStream(name, path, envelopeKey, primaryKey string, paged bool, fields ...core.Field) streamDescriptor {
	return streamDescriptor{
		name:          name,
		path:          path,
		api:           apiPlatform,
		envelopeKey:   envelopeKey,
		primaryKey:    primaryKey,
		pageSizeParam: "maxResults",
		offsetParam:   "startAt",
		paged:         paged,
		fields:        fields,
	}
}

func agileStream(name, path, primaryKey string, fields ...core.Field) streamDescriptor {
	return streamDescriptor{
		name:          name,
		path:          path,
		api:           apiAgile,
		envelopeKey:   "values",
		primaryKey:    primaryKey,
		pageSizeParam: "maxResults",
		offsetParam:   "startAt",
		paged:         true,
		fields:        fields,
	}
}

func serviceDeskStream(name, path, primaryKey string, fields ...core.Field) streamDescriptor {
	return streamDescriptor{
		name:          name,
		path:          path,
		api:           apiServiceDesk,
		envelopeKey:   "values",
		primaryKey:    primaryKey,
		pageSizeParam: "limit",
		offsetParam:   "start",
		paged:         true,
		fields:        fields,
	}
}

func sprintStream() streamDescriptor {
	desc := agileStream("sprint", "/board/{board}/sprint", "id",
		pkField("id", core.FieldTypeInt),
		field("name", core.FieldTypeString),
		field("state", core.FieldTypeString),
		field("startDate", core.FieldTypeTimestamp))
	desc.parent = "board"
	return desc
}

func field(name string, typ core.FieldType) core.Field {
	return core.Field{Name: name, Type: typ}
}

func pkField(name string, typ core.FieldType) core.Field {
	return core.Field{Name: name, Type: typ, Primary: true}
}

// catalog maps resource names to their stream descriptors. The source
// reads whichever subset the configuration selects.
var catalog = buildCatalog()

func buildCatalog() map[string]streamDescriptor {
	streams := []streamDescriptor{
		platformStream("users", "/users/search", "", "accountId", true,
			pkField("accountId", core.FieldTypeString),
			field("displayName", core.FieldTypeString),
			field("emailAddress", core.FieldTypeString),
			field("active", core.FieldTypeBool)),
		platformStream("field", "/field", "", "id", false,
			pkField("id", core.FieldTypeString),
			field("name", core.FieldTypeString),
			field("custom", core.FieldTypeBool)),
		platformStream("server_info", "/serverInfo", "", "baseUrl", false,
			pkField("baseUrl", core.FieldTypeString),
			field("version", core.FieldTypeString),
			field("serverTime", core.FieldTypeTimestamp)),
		platformStream("issue_type", "/issuetype", "", "id", false,
			pkField("id", core.FieldTypeString),
			field("name", core.FieldTypeString),
			field("subtask", core.FieldTypeBool)),
		platformStream("project", "/project/search", "values", "id", true,
			pkField("id", core.FieldTypeString),
			field("key", core.FieldTypeString),
			field("name", core.FieldTypeString),
			field("projectTypeKey", core.FieldTypeString)),
		platformStream("workflow_status", "/status", "", "id", false,
			pkField("id", core.FieldTypeString),
			field("name", core.FieldTypeString),
			field("statusCategory", core.FieldTypeJSON)),
		platformStream("permission", "/permissions", "", "permissions", false,
			field("permissions", core.FieldTypeJSON)),
		platformStream("project_role", "/role", "", "id", false,
			pkField("id", core.FieldTypeInt),
			field("name", core.FieldTypeString),
			field("description", core.FieldTypeString)),
		platformStream("priority", "/priority", "", "id", false,
			pkField("id", core.FieldTypeString),
			field("name", core.FieldTypeString),
			field("statusColor", core.FieldTypeString)),
		platformStream("permission_holder", "/permissionscheme", "permissionSchemes", "id", false,
			pkField("id", core.FieldTypeInt),
			field("name", core.FieldTypeString),
			field("permissions", core.FieldTypeJSON)),
		platformStream("audit_record", "/auditing/record", "records", "id", true,
			pkField("id", core.FieldTypeInt),
			field("summary", core.FieldTypeString),
			field("created", core.FieldTypeTimestamp),
			field("category", core.FieldTypeString)),
		platformStream("dashboard", "/dashboard", "dashboards", "id", true,
			pkField("id", core.FieldTypeString),
			field("name", core.FieldTypeString),
			field("view", core.FieldTypeString)),
		platformStream("filter_search", "/filter/search", "values", "id", true,
			pkField("id", core.FieldTypeString),
			field("name", core.FieldTypeString),
			field("owner", core.FieldTypeJSON)),
		platformStream("filter_default_share_scope", "/filter/defaultShareScope", "", "scope", false,
			pkField("scope", core.FieldTypeString)),
		platformStream("groups_picker", "/groups/picker", "groups", "groupId", false,
			pkField("groupId", core.FieldTypeString),
			field("name", core.FieldTypeString)),
		platformStream("license", "/instance/license", "applications", "id", false,
			pkField("id", core.FieldTypeString),
			field("plan", core.FieldTypeString)),
		platformStream("screens", "/screens", "values", "id", true,
			pkField("id", core.FieldTypeInt),
			field("name", core.FieldTypeString),
			field("description", core.FieldTypeString)),
		platformStream("screen_schemes", "/screenscheme", "values", "id", true,
			pkField("id", core.FieldTypeInt),
			field("name", core.FieldTypeString),
			field("screens", core.FieldTypeJSON)),
		platformStream("statuses_search", "/statuses/search", "values", "id", true,
			pkField("id", core.FieldTypeString),
			field("name", core.FieldTypeString),
			field("statusCategory", core.FieldTypeString)),
		platformStream("workflow", "/workflow", "", "name", false,
			pkField("name", core.FieldTypeString),
			field("description", core.FieldTypeString)),
		platformStream("workflow_search", "/workflow/search", "values", "id", true,
			pkField("id", core.FieldTypeJSON),
			field("description", core.FieldTypeString),
			field("created", core.FieldTypeTimestamp)),
		platformStream("resolution", "/resolution", "", "id", false,
			pkField("id", core.FieldTypeString),
			field("name", core.FieldTypeString),
			field("description", core.FieldTypeString)),
		agileStream("board", "/board", "id",
			pkField("id", core.FieldTypeInt),
			field("name", core.FieldTypeString),
			field("type", core.FieldTypeString)),
		sprintStream(),
		serviceDeskStream("organization", "/organization", "id",
			pkField("id", core.FieldTypeString),
			field("name", core.FieldTypeString)),
		serviceDeskStream("servicedesk", "/servicedesk", "id",
			pkField("id", core.FieldTypeString),
			field("projectId", core.FieldTypeString),
			field("projectName", core.FieldTypeString)),
		serviceDeskStream("request", "/request", "issueId",
			pkField("issueId", core.FieldTypeString),
			field("issueKey", core.FieldTypeString),
			field("createdDate", core.FieldTypeJSON)),
	}

	issues := platformStream("issues", "/search", "issues", "id", true,
		pkField("id", core.FieldTypeString),
		field("key", core.FieldTypeString),
		field("fields", core.FieldTypeJSON))
	issues.replicationKey = "updated"
	issues.jqlFiltered = true
	issues.baseFilter = "id != null"
	streams = append(streams, issues)

	childStreams := []struct {
		name        string
		path        string
		envelopeKey string
		primaryKey  string
	}{
		{"issue_changelog", "/issue/{issue}/changelog", "values", "id"},
		{"issue_comments", "/issue/{issue}/comment", "comments", "id"},
		{"issue_watchers", "/issue/{issue}/watchers", "watchers", "accountId"},
		{"issue_worklogs", "/issue/{issue}/worklog", "worklogs", "id"},
	}
	for _, cs := range childStreams {
		desc := platformStream(cs.name, cs.path, cs.envelopeKey, cs.primaryKey, cs.name != "issue_watchers",
			pkField(cs.primaryKey, core.FieldTypeString))
		desc.parent = "issues"
		streams = append(streams, desc)
	}

	byName := make(map[string]streamDescriptor, len(streams))
	for _, s := range streams {
		byName[s.name] = s
	}
	return byName
}

// catalogNames returns all resource names, sorted.
func catalogNames() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// schemaFor builds the discovery schema for a descriptor.
func schemaFor(desc streamDescriptor) *core.Schema {
	return &core.Schema{
		Name:    desc.name,
		Fields:  desc.fields,
		Version: 1,
	}
}
