// Package repository provides a generic repository abstraction built on Bun
// for CRUD operations, derived queries, specifications, query by example,
// pagination, transactions, and upsert support.
package repository
