// Package domain is the member/team sample model: bun models, their entity
// descriptors, seed SQL, DTOs and a MemberRepository built on derived
// queries. The demo HTTP layer and the CLI run against it.
package domain
