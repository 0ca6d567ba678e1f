/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package domain

import (
	"github.com/znxmin/data-jpa/projection"
)

type MemberDto struct {
	ID       int64  `json:"id" mapstructure:"id"`
	Username string `json:"username" mapstructure:"username"`
	TeamName string `json:"teamName" mapstructure:"teamName"`
}

// NewMemberDto copies m; the team name is empty when the team was not
// loaded with the member.
func NewMemberDto(m *Member) MemberDto {
	dto := MemberDto{ID: m.ID, Username: m.Username}
	if m.Team != nil {
		dto.TeamName = m.Team.Name
	}
	return dto
}

var (
	// MemberDtoView reads the team name through the team relation.
	MemberDtoView = projection.NewClosed("MemberDto", "Member",
		projection.Field("id"),
		projection.Field("username"),
		projection.As("team.name", "teamName"),
	)

	UsernameOnly = projection.NewClosed("UsernameOnly", "Member", projection.Field("username"))

	// UsernameOnlyOpen loads each member's team unless the query fetched it.
	UsernameOnlyOpen = projection.NewOpen("UsernameOnly", "Member",
		projection.Expr("username", "target.username + ' ' + target.age + ' ' + target.team.name"),
	)
)
