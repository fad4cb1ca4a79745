// Package storage provides the object-storage archive for reconciliation
// cycle reports.
//
// Each completed sync cycle can upload a JSON summary (counts, dropped
// duplicates, unresolved conflicts) under reports/<table>/, giving operators
// an audit trail independent of the log stream. Archiving is optional and
// best-effort.
package storage
