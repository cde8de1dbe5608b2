// Package schema carries the static database documentation handed to
// the SQL generator, plus the registry of relations a generated query
// may reference.
//
// The schema belongs to an external list-management system and is
// loaded once at process start; everything here is read-only.
package schema

// Relations enumerates every table and view a generated statement may
// reference. The generator rejects statements that mention anything
// outside this set before they reach the executor.
var Relations = []string{
	"domains",
	"subdomains",
	"list_requests",
	"list_versions",
	"target_list_entries",
	"call_list_entries",
	"competitor_target_entries",
	"digital_engagement_entries",
	"formulary_decision_maker_entries",
	"high_value_prescriber_entries",
	"idn_health_system_entries",
	"work_logs",
	"view_request_context",
	"view_target_list_full",
	"view_list_evolution",
	"v_current_state_target_list",
	"view_work_attribution",
}

// IsKnownRelation reports whether name is a table or view in the schema.
func IsKnownRelation(name string) bool {
	for _, r := range Relations {
		if r == name {
			return true
		}
	}
	return false
}

// Context is the schema documentation injected into generation prompts.
// It describes a list management and evolution tracking system for
// healthcare professionals (HCPs): business requests produce lists that
// evolve through numbered versions, with audit, call, competitor, and
// engagement data attached.
const Context = `SYSTEM OVERVIEW
This database powers a list management and evolution tracking system for
healthcare professionals (HCPs). Lists are created in response to
business requests and evolve through numbered versions that add, remove,
or edit HCP entries. Related tables track sales calls, competitor
activity, digital engagement, and audit logs.

CORE TABLES

domains
  High-level business domains (e.g. "Cardiology", "Oncology").
  Columns: domain_name. Use to categorize or filter requests.

subdomains
  Subdivisions under each domain; each belongs to one domain.
  Columns: domain_id, subdomain_name.

list_requests
  A business request for creating or updating a list of HCPs.
  Columns: requester_name, request_purpose, status, assigned_to,
  created_at. Use to answer "who requested what and why".

list_versions
  Tracks the evolution of each request via numbered versions.
  Columns: request_id, version_number, change_type, change_rationale,
  created_by, is_current, created_at.

target_list_entries
  HCPs (doctors) in each list version; the core list data.
  Columns: version_id, hcp_id, hcp_name, specialty, territory, tier.

call_list_entries
  Planned or completed sales-rep calls to HCPs.
  Columns: hcp_id, hcp_name, call_date, sales_rep, status.

competitor_target_entries
  Competitor engagements with HCPs.
  Columns: hcp_name, competitor_product, conversion_potential
  (High/Medium/Low), assigned_rep.

digital_engagement_entries
  Digital outreach contacts such as email campaigns.
  Columns: contact_name, email, specialty, opt_in (boolean).

formulary_decision_maker_entries
  Contacts who make formulary or approval decisions.
  Columns: contact_name, organization, influence_level (High/Medium/Low).

high_value_prescriber_entries
  HCPs generating high prescription or revenue volume.
  Columns: hcp_name, total_prescriptions, revenue, value_tier.

idn_health_system_entries
  Health systems or hospital networks and their key contacts.
  Columns: system_name, contact_name, importance (Tier 1/2/3).

work_logs
  Audit trail of all request and version activity.
  Columns: worker_name, activity_description, decisions_made,
  activity_date.

VIEWS

view_request_context
  Complete context of requests, versions, domains, and work logs.
view_target_list_full
  list_versions joined with target_list_entries; HCPs with version
  details and author.
view_list_evolution
  How a list changed over time, with rationale and author.
v_current_state_target_list
  Differences between the original and current HCP lists
  (change_status: Added/Removed/Modified).
view_work_attribution
  Who contributed to which request or version, by action and date.

RELATIONSHIPS
domains (1) -< subdomains (1) -< list_requests (1) -< list_versions
(1) -< target_list_entries / call_list_entries / other entry tables.
list_requests (1) -< work_logs.

QUERY GUIDANCE
- "current list", "latest version", "HCPs": view_target_list_full
- "changes", "differences": v_current_state_target_list or
  view_list_evolution
- "who requested", "purpose": list_requests or view_request_context
- "who made updates", "history": work_logs or view_work_attribution
- "competitor", "conversion": competitor_target_entries
- "sales call", "rep performance": call_list_entries
- "decision makers", "formulary": formulary_decision_maker_entries
- "high value", "top doctors": high_value_prescriber_entries
- "hospitals", "systems": idn_health_system_entries
Join through foreign keys; prefer views for business questions; use
ILIKE for user-supplied search terms.`
