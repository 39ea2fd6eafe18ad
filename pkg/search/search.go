// Package search assembles and executes the SQL query a single LDAP
// search request translates to, and projects the resulting rows back
// into synthesised LDAP entries.
package search

import "github.com/sql2ldap/sql2ldap/pkg/filter"

// Scope mirrors the three RFC 4511 search scopes.
type Scope int

const (
	ScopeBaseObject Scope = 0
	ScopeSingleLevel Scope = 1
	ScopeWholeSubtree Scope = 2
)

// ResultCode is a subset of the RFC 4511 LDAPResult result codes this
// server can produce.
type ResultCode int

const (
	ResultSuccess              ResultCode = 0
	ResultOperationsError      ResultCode = 1
	ResultProtocolError        ResultCode = 2
	ResultTimeLimitExceeded    ResultCode = 3
	ResultSizeLimitExceeded    ResultCode = 4
	ResultAuthMethodNotSupported ResultCode = 7
	ResultNoSuchObject         ResultCode = 32
	ResultUnwillingToPerform   ResultCode = 53
	ResultOther                ResultCode = 80
)

// Request is a validated, already-decoded LDAP search request.
type Request struct {
	BaseDN       string
	Scope        Scope
	SizeLimit    int // 0 = unlimited
	TimeLimit    int // seconds, 0 = unlimited
	Attributes   []string // empty or ["*"] => all user attributes; ["1.1"] => none
	Filter       *filter.Filter
}

// Entry is one synthesised LDAP entry.
type Entry struct {
	DN         string
	Attributes map[string][]string
}

// Outcome is the terminal status of a completed or aborted search.
type Outcome struct {
	Code    ResultCode
	Entries []Entry
}
