// Package enrich fetches posting details from the job board with a rotating
// token pool and folds them into local records, mapping the 403 and 404
// terminal states onto the private and removed flags.
package enrich
