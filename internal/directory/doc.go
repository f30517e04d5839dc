// Package directory holds the domain types and collaborator contracts shared by
// the record store, the search service, and the performance reporter. It must
// not import database drivers or HTTP packages.
package directory
