// Package database provides connection management, migrations, seed SQL,
// foreign keys derived from the entity registry, query hooks, metrics, error
// classification and logging, built on top of bun.
package database
